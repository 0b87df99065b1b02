package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formchimp/core"
	formchimpquery "github.com/goliatone/go-formchimp/query"
)

func newActivityCommand(ctx *commandContext) *cobra.Command {
	activityCmd := &cobra.Command{
		Use:   "activity",
		Short: "Inspect and prune the activity log",
	}

	activityCmd.AddCommand(newActivityListCommand(ctx))
	activityCmd.AddCommand(newActivityPruneCommand(ctx))

	return activityCmd
}

func newActivityListCommand(ctx *commandContext) *cobra.Command {
	var filter core.ActivityFilter
	var status string
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activity entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = core.ActivityStatus(strings.TrimSpace(status))
			if since > 0 {
				from := time.Now().UTC().Add(-since)
				filter.From = &from
			}

			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				page, err := runQuery[formchimpquery.ListActivityMessage, core.ActivityPage](
					runCtx, rt.facade.Queries().ListActivity, formchimpquery.ListActivityMessage{Filter: filter},
				)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, page)
				}
				if len(page.Items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No activity")
					return nil
				}
				rows := make([][]string, 0, len(page.Items))
				for _, entry := range page.Items {
					rows = append(rows, []string{
						entry.CreatedAt.Local().Format("2006-01-02 15:04:05"),
						entry.Action,
						string(entry.Status),
						entry.FormName,
						entry.AudienceID,
						entry.Message,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable([]string{"Time", "Action", "Status", "Form", "Audience", "Message"}, rows, nil))
				fmt.Fprintf(out, "Page %d, %d of %d entries\n", page.Page, len(page.Items), page.Total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.Action, "action", "", "Filter by action")
	cmd.Flags().StringVar(&filter.FormName, "form", "", "Filter by form name")
	cmd.Flags().StringVar(&filter.AudienceID, "audience", "", "Filter by audience id")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (ok, warn, error)")
	cmd.Flags().DurationVar(&since, "since", 0, "Only entries newer than this duration")
	cmd.Flags().IntVar(&filter.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&filter.PerPage, "per-page", 25, "Entries per page")
	return cmd
}

func newActivityPruneCommand(ctx *commandContext) *cobra.Command {
	var retentionDays int
	var rowCap int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete activity entries past the retention window or row cap",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(runCtx context.Context, rt *runtime) error {
				policy := core.RetentionPolicyFromConfig(rt.service.Config().Activity)
				if cmd.Flags().Changed("retention-days") {
					policy.TTL = time.Duration(retentionDays) * 24 * time.Hour
				}
				if cmd.Flags().Changed("row-cap") {
					policy.RowCap = rowCap
				}
				deleted, err := rt.stores.ActivityStore().Prune(runCtx, policy)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"deleted": deleted})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d activity entries\n", deleted)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "Override the configured retention window")
	cmd.Flags().IntVar(&rowCap, "row-cap", 0, "Override the configured row cap")
	return cmd
}
