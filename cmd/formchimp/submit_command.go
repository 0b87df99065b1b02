package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	formchimpcommand "github.com/goliatone/go-formchimp/command"
	"github.com/goliatone/go-formchimp/core"
	formchimpquery "github.com/goliatone/go-formchimp/query"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var rawValues []string
	var remoteIP string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "submit FORM",
		Short: "Process a form submission into its Mailchimp audience",
		Long: "Process a form submission into its Mailchimp audience. Repeat --value for " +
			"multi-value fields. With --dry-run the member payload is printed and nothing " +
			"is sent.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			form, err := cfg.Form(args[0])
			if err != nil {
				return err
			}
			values, err := parseSubmissionValues(rawValues)
			if err != nil {
				return err
			}
			submission := core.Submission{
				FormName: form.Name,
				Values:   values,
				RemoteIP: strings.TrimSpace(remoteIP),
			}

			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				if dryRun {
					settings, err := rt.service.GetFormConfiguration(runCtx, form.Name)
					if err != nil {
						return err
					}
					payload, err := runQuery[formchimpquery.PreviewPayloadMessage, core.MemberPayload](
						runCtx, rt.facade.Queries().PreviewPayload,
						formchimpquery.PreviewPayloadMessage{Form: form, Settings: settings, Submission: submission},
					)
					if err != nil {
						return err
					}
					return writeJSON(cmd, payload.Body())
				}

				result, err := runCommand[formchimpcommand.ProcessSubmissionMessage, core.ProcessResult](
					runCtx, rt.facade.Commands().ProcessSubmission,
					formchimpcommand.ProcessSubmissionMessage{Request: core.ProcessSubmissionRequest{Form: form, Submission: submission}},
				)
				if err != nil {
					return err
				}
				return printProcessResult(cmd, ctx, result)
			})
		},
	}

	cmd.Flags().StringArrayVar(&rawValues, "value", nil, "Submitted value as FIELD=VALUE")
	cmd.Flags().StringVar(&remoteIP, "ip", "", "Remote IP address of the submitter")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the member payload without sending it")
	return cmd
}

// parseSubmissionValues groups FIELD=VALUE pairs. Repeated fields become
// string lists.
func parseSubmissionValues(pairs []string) (map[string]any, error) {
	grouped := map[string][]string{}
	order := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid value %q, expected FIELD=VALUE", pair)
		}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], value)
	}
	values := make(map[string]any, len(grouped))
	for _, key := range order {
		if len(grouped[key]) == 1 {
			values[key] = grouped[key][0]
			continue
		}
		values[key] = grouped[key]
	}
	return values, nil
}

func printProcessResult(cmd *cobra.Command, ctx *commandContext, result core.ProcessResult) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, map[string]any{
			"status":      result.Status,
			"reason":      result.Reason,
			"audience_id": result.AudienceID,
			"action":      result.Action,
			"member_id":   result.Member.ID,
			"error":       result.Error,
		})
	}
	pairs := [][2]string{
		{"Status", string(result.Status)},
		{"Audience", result.AudienceID},
	}
	if result.Reason != "" {
		pairs = append(pairs, [2]string{"Reason", result.Reason})
	}
	if result.Action != "" {
		pairs = append(pairs, [2]string{"Action", string(result.Action)})
	}
	if result.Member.ID != "" {
		pairs = append(pairs, [2]string{"Member", result.Member.ID})
	}
	if result.Error != "" {
		pairs = append(pairs, [2]string{"Error", result.Error})
	}
	if len(result.Payload.MergeFields) > 0 {
		tags := make([]string, 0, len(result.Payload.MergeFields))
		for tag := range result.Payload.MergeFields {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		pairs = append(pairs, [2]string{"Merge fields", strings.Join(tags, ", ")})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues(pairs))
	return nil
}
