package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	formchimpcommand "github.com/goliatone/go-formchimp/command"
	"github.com/goliatone/go-formchimp/core"
	formchimpquery "github.com/goliatone/go-formchimp/query"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage the Mailchimp module settings",
	}

	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	settingsCmd.AddCommand(newSettingsValidateCommand(ctx))

	return settingsCmd
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the module settings with the API key masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				settings, err := runQuery[formchimpquery.GetModuleSettingsMessage, core.ModuleSettings](
					runCtx, rt.facade.Queries().GetModuleSettings, formchimpquery.GetModuleSettingsMessage{},
				)
				if err != nil {
					return err
				}
				return printSettings(cmd, ctx, settings)
			})
		},
	}
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	var apiKey string
	var ready bool
	var tags []string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the API key, ready flag or local audience tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := core.ModuleSettingsPatch{}
			if cmd.Flags().Changed("api-key") {
				value := strings.TrimSpace(apiKey)
				patch.APIKey = &value
			}
			if cmd.Flags().Changed("ready") {
				value := ready
				patch.APIReady = &value
			}
			if cmd.Flags().Changed("local-tags") {
				value := append([]string(nil), tags...)
				patch.LocalAudienceTags = &value
			}

			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				settings, err := runCommand[formchimpcommand.SaveModuleSettingsMessage, core.ModuleSettings](
					runCtx, rt.facade.Commands().SaveModuleSettings, formchimpcommand.SaveModuleSettingsMessage{Patch: patch},
				)
				if err != nil {
					return err
				}
				settings.APIKey = core.MaskAPIKey(settings.APIKey)
				return printSettings(cmd, ctx, settings)
			})
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "Mailchimp API key including the data center suffix")
	cmd.Flags().BoolVar(&ready, "ready", false, "Mark the API key as validated")
	cmd.Flags().StringSliceVar(&tags, "local-tags", nil, "Replace the local audience tags")
	return cmd
}

func newSettingsValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the stored API key against Mailchimp",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				result, err := runCommand[formchimpcommand.ValidateAPIKeyMessage, core.APIKeyValidation](
					runCtx, rt.facade.Commands().ValidateAPIKey, formchimpcommand.ValidateAPIKeyMessage{},
				)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{
						"ready":       result.Ready,
						"status_code": result.StatusCode,
						"message":     result.Message,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues([][2]string{
					{"API ready", yesNo(result.Ready)},
					{"Status code", strconv.Itoa(result.StatusCode)},
					{"Message", result.Message},
				}))
				return nil
			})
		},
	}
}

func printSettings(cmd *cobra.Command, ctx *commandContext, settings core.ModuleSettings) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, map[string]any{
			"mailchimp_api_key":   settings.APIKey,
			"mailchimp_api_ready": settings.APIReady,
			"local_audience_tags": settings.LocalAudienceTags,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues([][2]string{
		{"API key", settings.APIKey},
		{"API ready", yesNo(settings.APIReady)},
		{"Local audience tags", strings.Join(settings.LocalAudienceTags, ", ")},
	}))
	return nil
}
