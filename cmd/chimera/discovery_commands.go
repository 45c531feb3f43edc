package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"chimera/internal/ipc"
)

func newDiscoveriesCommand(ctx *commandContext) *cobra.Command {
	discoveriesCmd := &cobra.Command{
		Use:   "discoveries",
		Short: "Review and give feedback on surfaced discoveries",
	}

	discoveriesCmd.AddCommand(newDiscoveriesListCommand(ctx))
	discoveriesCmd.AddCommand(newDiscoveryFeedbackCommand(ctx, "confirm", "Confirm a discovery as accurate"))
	discoveriesCmd.AddCommand(newDiscoveryFeedbackCommand(ctx, "dismiss", "Dismiss a discovery as wrong or unwanted"))

	return discoveriesCmd
}

func newDiscoveriesListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discoveries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Discoveries(ipc.DiscoveriesRequest{Statuses: statuses})
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Discoveries) == 0 {
					fmt.Fprintln(stdout, "No discoveries yet; run `chimera correlate` after indexing some files")
					return nil
				}

				rows := make([][]string, 0, len(resp.Discoveries))
				for _, discovery := range resp.Discoveries {
					rows = append(rows, []string{
						strconv.FormatInt(discovery.ID, 10),
						discovery.Type,
						discovery.Title,
						fmt.Sprintf("%.2f", discovery.Confidence),
						strconv.Itoa(discovery.SourceCount),
						discovery.Status,
					})
				}
				table := renderTable(
					[]string{"ID", "Type", "Title", "Confidence", "Sources", "Status"},
					rows,
					0, 3, 4,
				)
				fmt.Fprintln(stdout, table)

				if verbose {
					for _, discovery := range resp.Discoveries {
						fmt.Fprintf(stdout, "\n#%d %s\n  %s\n", discovery.ID, discovery.Title, discovery.Description)
						if discovery.Feedback != "" {
							fmt.Fprintf(stdout, "  feedback: %s\n", discovery.Feedback)
						}
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (active, confirmed, dismissed)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show full descriptions")
	return cmd
}

func newDiscoveryFeedbackCommand(ctx *commandContext, action, short string) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid discovery id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Feedback(ipc.FeedbackRequest{ID: id, Action: action, Feedback: note})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Discovery %d marked %s\n", id, resp.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Optional feedback note to store with the decision")
	return cmd
}
