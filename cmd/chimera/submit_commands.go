package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chimera/internal/config"
	"chimera/internal/ipc"
	"chimera/internal/queue"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [root...]",
		Short: "Scan library roots and enqueue extraction for every file",
		Long:  "Walks the given roots (configured library roots when omitted) and enqueues a file extraction job per supported file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			roots := make([]string, 0, len(args))
			for _, arg := range args {
				expanded, err := config.ExpandPath(arg)
				if err != nil {
					return fmt.Errorf("resolve root %q: %w", arg, err)
				}
				if _, err := os.Stat(expanded); err != nil {
					return fmt.Errorf("inspect root %q: %w", arg, err)
				}
				roots = append(roots, expanded)
			}

			payload := map[string]any{}
			if len(roots) > 0 {
				anyRoots := make([]any, 0, len(roots))
				for _, root := range roots {
					anyRoots = append(anyRoots, root)
				}
				payload["roots"] = anyRoots
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(ipc.SubmitRequest{
					Type:     string(queue.TypeBatchExtraction),
					Priority: int(queue.PriorityUserTriggered),
					Payload:  payload,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scan queued (job %s)\n", resp.ID)
				return nil
			})
		},
	}
	return cmd
}

func newAddFileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>",
		Short: "Queue a single file for extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve path %q: %w", args[0], err)
			}
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("inspect path %q: %w", args[0], err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory; use `chimera scan %s`", path, path)
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(ipc.SubmitRequest{
					Type:     string(queue.TypeFileExtraction),
					Priority: int(queue.PriorityUserTriggered),
					Payload:  map[string]any{"path": path},
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Extraction queued (job %s)\n", resp.ID)
				return nil
			})
		},
	}
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <export-file>",
		Short: "Queue an assistant conversation export for ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve path %q: %w", args[0], err)
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("inspect path %q: %w", args[0], err)
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(ipc.SubmitRequest{
					Type:     string(queue.TypeConversationExport),
					Priority: int(queue.PriorityConversationExport),
					Payload:  map[string]any{"path": path},
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Conversation ingest queued (job %s)\n", resp.ID)
				return nil
			})
		},
	}
}

func newCorrelateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "correlate",
		Short: "Queue a correlation run over the indexed catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(ipc.SubmitRequest{
					Type:     string(queue.TypeCorrelation),
					Priority: int(queue.PriorityUserTriggered),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Correlation queued (job %s)\n", resp.ID)
				return nil
			})
		},
	}
}
