package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"chimera/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				readyKind := statusWarn
				readyDetail := "starting up"
				if resp.Ready {
					readyKind = statusOK
					readyDetail = fmt.Sprintf("pid %d", resp.PID)
				}
				fmt.Fprintln(stdout, renderStatusLine("Running", statusOK, yesNo(resp.Running), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Ready", readyKind, readyDetail, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Queue DB", statusInfo, resp.QueueDBPath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Lock file", statusInfo, resp.LockPath, colorize))
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Current Operation", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderOperation(resp.CurrentOperation, colorize))
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Queue", colorize) {
					fmt.Fprintln(stdout, line)
				}
				rows := buildQueueStatusRows(resp.QueueStats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
				} else {
					fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, 1))
				}

				if len(resp.PendingByType) > 0 {
					fmt.Fprintln(stdout)
					for _, line := range renderSectionHeader("Pending By Type", colorize) {
						fmt.Fprintln(stdout, line)
					}
					fmt.Fprintln(stdout, renderTable(
						[]string{"Type", "Pending"},
						buildPendingRows(resp.PendingByType),
						1,
					))
				}
				return nil
			})
		},
	}
}

func renderOperation(op *ipc.OperationView, colorize bool) string {
	if op == nil {
		return renderStatusLine("Worker", statusInfo, "idle", colorize)
	}
	if op.JustCompleted {
		kind := statusOK
		outcome := "succeeded"
		if !op.Succeeded {
			kind = statusError
			outcome = "failed"
		}
		detail := fmt.Sprintf("%s %s (took %s)", op.JobType, outcome, formatDuration(op.Elapsed))
		return renderStatusLine("Just completed", kind, detail, colorize)
	}
	detail := fmt.Sprintf("%s %s, elapsed %s", op.JobType, op.JobID, formatDuration(op.Elapsed))
	if op.EstimatedTotal > 0 {
		remaining := op.EstimatedTotal - op.Elapsed
		if remaining < 0 {
			remaining = 0
		}
		detail += fmt.Sprintf(", ~%s remaining", formatDuration(remaining))
	}
	return renderStatusLine("Working", statusInfo, detail, colorize)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

var queueStatusOrder = []string{"pending", "running", "completed", "failed"}

func buildQueueStatusRows(stats map[string]int) [][]string {
	total := stats["total"]
	if total == 0 {
		return nil
	}
	rows := make([][]string, 0, len(queueStatusOrder)+1)
	for _, status := range queueStatusOrder {
		if count, ok := stats[status]; ok && count > 0 {
			rows = append(rows, []string{status, strconv.Itoa(count)})
		}
	}
	rows = append(rows, []string{"total", strconv.Itoa(total)})
	return rows
}

func buildPendingRows(pending map[string]int) [][]string {
	types := make([]string, 0, len(pending))
	for jobType := range pending {
		types = append(types, jobType)
	}
	sort.Strings(types)
	rows := make([][]string, 0, len(types))
	for _, jobType := range types {
		rows = append(rows, []string{jobType, strconv.Itoa(pending[jobType])})
	}
	return rows
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge catalog statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stats()
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Files", strconv.Itoa(resp.Files)},
					{"Indexed files", strconv.Itoa(resp.IndexedFiles)},
					{"Failed files", strconv.Itoa(resp.FailedFiles)},
					{"Chunks", strconv.Itoa(resp.Chunks)},
					{"Raw entities", strconv.Itoa(resp.RawEntities)},
					{"Consolidated entities", strconv.Itoa(resp.ConsolidatedEntities)},
					{"Patterns", strconv.Itoa(resp.Patterns)},
					{"Discoveries", strconv.Itoa(resp.Discoveries)},
					{"Conversations", strconv.Itoa(resp.Conversations)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Metric", "Count"}, rows, 1))
				return nil
			})
		},
	}
}
