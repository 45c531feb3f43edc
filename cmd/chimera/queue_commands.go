package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chimera/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList(ipc.QueueListRequest{Statuses: listStatuses, Limit: limit})
				if err != nil {
					return err
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(resp.Jobs))
				for _, job := range resp.Jobs {
					rows = append(rows, []string{
						job.ID,
						job.Type,
						job.Status,
						strconv.Itoa(job.Priority),
						jobDetail(job),
						job.CreatedAt.Local().Format(time.DateTime),
					})
				}
				table := renderTable(
					[]string{"ID", "Type", "Status", "Priority", "Detail", "Created"},
					rows,
					3,
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (pending, running, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of jobs to show")
	return cmd
}

func jobDetail(job ipc.JobView) string {
	if job.Error != "" {
		return truncateDetail(job.Error)
	}
	if path, ok := job.Payload["path"].(string); ok {
		return truncateDetail(path)
	}
	if roots, ok := job.Payload["roots"].([]any); ok && len(roots) > 0 {
		parts := make([]string, 0, len(roots))
		for _, root := range roots {
			if s, ok := root.(string); ok {
				parts = append(parts, s)
			}
		}
		return truncateDetail(strings.Join(parts, ", "))
	}
	return ""
}

func truncateDetail(value string) string {
	const maxDetail = 60
	if len(value) <= maxDetail {
		return value
	}
	return value[:maxDetail-3] + "..."
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Reset failed jobs to pending (all failed jobs when no ids given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Retry(ipc.RetryRequest{IDs: args})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retried %d job(s)\n", resp.Retried)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to clear the queue without --force")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Clear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", resp.Removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm removal of all jobs")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Run job-store diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DatabaseHealth()
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				for _, line := range renderSectionHeader("Queue Database", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Path", statusInfo, resp.DBPath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Exists", boolKind(resp.DatabaseExists), yesNo(resp.DatabaseExists), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Readable", boolKind(resp.DatabaseReadable), yesNo(resp.DatabaseReadable), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Jobs table", boolKind(resp.TableExists), yesNo(resp.TableExists), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Integrity", boolKind(resp.IntegrityCheck), yesNo(resp.IntegrityCheck), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Total jobs", statusInfo, strconv.Itoa(resp.TotalJobs), colorize))
				if len(resp.MissingColumns) > 0 {
					fmt.Fprintln(stdout, renderStatusLine("Missing columns", statusError, strings.Join(resp.MissingColumns, ", "), colorize))
				}
				if resp.Error != "" {
					fmt.Fprintln(stdout, renderStatusLine("Error", statusError, resp.Error, colorize))
				}
				return nil
			})
		},
	}
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}
