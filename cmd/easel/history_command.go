package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"easel/internal/api"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently finished jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Entries) == 0 {
					fmt.Fprintln(out, "No finished jobs")
					return nil
				}
				fmt.Fprint(out, renderHistoryTable(resp.Entries))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output history as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

func renderHistoryTable(entries []api.HistoryEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		status := entry.Status
		if entry.ErrorKind != "" {
			status += " (" + entry.ErrorKind + ")"
		}
		rows = append(rows, []string{
			entry.RequestID,
			entry.Profile,
			entry.Requester,
			status,
			strconv.Itoa(entry.OutputCount),
			(time.Duration(entry.DurationMS) * time.Millisecond).String(),
			entry.FinishedAt,
		})
	}
	return renderTable(
		[]string{"ID", "Profile", "Requester", "Status", "Outputs", "Duration", "Finished"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}
