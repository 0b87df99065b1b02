package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	formchimpcommand "github.com/goliatone/go-formchimp/command"
	"github.com/goliatone/go-formchimp/core"
)

func newMaintenanceCommand(ctx *commandContext) *cobra.Command {
	maintenanceCmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Data maintenance tasks",
	}

	maintenanceCmd.AddCommand(newMaintenanceTagsCommand(ctx))
	maintenanceCmd.AddCommand(newMaintenanceRunCommand(ctx))

	return maintenanceCmd
}

func newMaintenanceTagsCommand(ctx *commandContext) *cobra.Command {
	var audienceID string

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Store configured audience tags that Mailchimp does not know yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				result, err := runCommand[formchimpcommand.UpdateAudienceTagsMessage, core.AudienceTagsResult](
					runCtx, rt.facade.Commands().UpdateAudienceTags,
					formchimpcommand.UpdateAudienceTagsMessage{AudienceID: audienceID},
				)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{
						"audience_ids": result.AudienceIDs,
						"tags_in_use":  result.TagsInUse,
						"remote_tags":  result.RemoteTags,
						"local_tags":   result.LocalTags,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues([][2]string{
					{"Audiences", strings.Join(result.AudienceIDs, ", ")},
					{"Tags in use", strings.Join(result.TagsInUse, ", ")},
					{"Remote tags", strings.Join(result.RemoteTags, ", ")},
					{"Local tags", strings.Join(result.LocalTags, ", ")},
				}))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&audienceID, "audience", "", "Limit the update to one audience")
	return cmd
}

func newMaintenanceRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every maintenance task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				if err := rt.service.ExecuteMaintenance(runCtx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Maintenance complete")
				return nil
			})
		},
	}
}
