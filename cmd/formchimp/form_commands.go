package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	formchimpcommand "github.com/goliatone/go-formchimp/command"
	"github.com/goliatone/go-formchimp/core"
	formchimpquery "github.com/goliatone/go-formchimp/query"
)

func newFormCommand(ctx *commandContext) *cobra.Command {
	formCmd := &cobra.Command{
		Use:   "form",
		Short: "Manage per-form processor configuration",
	}

	formCmd.AddCommand(newFormListCommand(ctx))
	formCmd.AddCommand(newFormShowCommand(ctx))
	formCmd.AddCommand(newFormSetCommand(ctx))
	formCmd.AddCommand(newFormConfigureCommand(ctx))

	return formCmd
}

func newFormListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List forms from the configuration file and the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				stored, err := rt.stores.FormConfigStore().ListForms(runCtx)
				if err != nil {
					return err
				}
				names := map[string]bool{}
				for _, form := range rt.config.Forms {
					names[form.Name] = true
				}
				for _, name := range stored {
					if _, ok := names[name]; !ok {
						names[name] = false
					}
				}
				ordered := make([]string, 0, len(names))
				for name := range names {
					ordered = append(ordered, name)
				}
				sort.Strings(ordered)

				type formRow struct {
					Name       string `json:"name"`
					AudienceID string `json:"audience_id"`
					Catalog    bool   `json:"in_config"`
				}
				rows := make([]formRow, 0, len(ordered))
				for _, name := range ordered {
					settings, err := rt.service.GetFormConfiguration(runCtx, name)
					if err != nil {
						return err
					}
					rows = append(rows, formRow{Name: name, AudienceID: settings.AudienceID(), Catalog: names[name]})
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd, rows)
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No forms configured")
					return nil
				}
				tableRows := make([][]string, 0, len(rows))
				for _, row := range rows {
					tableRows = append(tableRows, []string{row.Name, row.AudienceID, yesNo(row.Catalog)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Form", "Audience", "In config"}, tableRows, nil))
				return nil
			})
		},
	}
}

func newFormShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show FORM",
		Short: "Show the stored processor configuration of a form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				settings, err := runQuery[formchimpquery.GetFormConfigurationMessage, core.ProcessorSettings](
					runCtx, rt.facade.Queries().GetFormConfiguration, formchimpquery.GetFormConfigurationMessage{FormName: args[0]},
				)
				if err != nil {
					return err
				}
				return printProcessorSettings(cmd, ctx, settings)
			})
		},
	}
}

func newFormSetCommand(ctx *commandContext) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "set FORM KEY=VALUE...",
		Short: "Set processor configuration keys for a form",
		Long: "Set processor configuration keys for a form. Values are parsed as JSON when " +
			"possible, so lists are written as [\"a\",\"b\"] and flags as true or false. " +
			"An empty value removes the key.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			msg := formchimpcommand.SaveFormConfigurationMessage{
				FormName: args[0],
				Settings: core.ProcessorSettings(values),
				Merge:    !replace,
			}
			if replace {
				for key, value := range msg.Settings {
					if value == nil {
						delete(msg.Settings, key)
					}
				}
			}

			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				settings, err := runCommand[formchimpcommand.SaveFormConfigurationMessage, core.ProcessorSettings](
					runCtx, rt.facade.Commands().SaveFormConfiguration, msg,
				)
				if err != nil {
					return err
				}
				return printProcessorSettings(cmd, ctx, settings)
			})
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the whole configuration instead of merging keys")
	return cmd
}

func newFormConfigureCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "configure FORM",
		Short: "Render the configuration options for a form from Mailchimp metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			form, err := cfg.Form(args[0])
			if err != nil {
				return err
			}

			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				configuration, err := runQuery[formchimpquery.BuildFormConfigurationMessage, core.ConfigurationForm](
					runCtx, rt.facade.Queries().BuildFormConfiguration,
					formchimpquery.BuildFormConfigurationMessage{Request: core.BuildConfigurationRequest{Form: form}},
				)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, configuration)
				}
				printConfigurationForm(cmd, configuration)
				return nil
			})
		},
	}
}

// parseAssignments turns KEY=VALUE pairs into configuration values. An empty
// value maps to nil.
func parseAssignments(pairs []string) (map[string]any, error) {
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected KEY=VALUE", pair)
		}
		values[key] = parseValue(raw)
	}
	return values, nil
}

func parseValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	switch trimmed[0] {
	case '[', '{', '"':
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	if parsed, err := strconv.ParseBool(trimmed); err == nil {
		return parsed
	}
	return trimmed
}

func printProcessorSettings(cmd *cobra.Command, ctx *commandContext, settings core.ProcessorSettings) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, map[string]any(settings))
	}
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, formatValue(settings[key])})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, rows, nil))
	return nil
}

func printConfigurationForm(cmd *cobra.Command, configuration core.ConfigurationForm) {
	out := cmd.OutOrStdout()
	if configuration.Notice != "" {
		fmt.Fprintln(out, configuration.Notice)
	}
	for _, message := range configuration.Errors {
		fmt.Fprintf(out, "error: %s\n", message)
	}
	rows := make([][]string, 0)
	for _, section := range configuration.Sections {
		rows = appendInputRows(rows, section.Name, section.Inputs)
	}
	if len(rows) == 0 {
		return
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Section", "Input", "Kind", "Value", "Options", "Notes"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func appendInputRows(rows [][]string, section string, inputs []core.ConfigInput) [][]string {
	for _, input := range inputs {
		if input.Kind == core.ConfigInputSpacer || input.Kind == core.ConfigInputMarkup {
			continue
		}
		name := input.Name
		if name == "" {
			name = input.Label
		}
		rows = append(rows, []string{
			section,
			name,
			string(input.Kind),
			formatValue(input.Value),
			strconv.Itoa(len(input.Options)),
			input.Notes,
		})
		rows = appendInputRows(rows, section, input.Children)
	}
	return rows
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case []string:
		return strings.Join(typed, ", ")
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(typed)
	}
}
