package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"easel/internal/api"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the active request and the waiting queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Queue(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				if status.Active != nil {
					fmt.Fprintf(out, "Active: %s (%s) for %s\n", status.Active.ID, status.Active.Profile, status.Active.Requester)
				} else {
					fmt.Fprintln(out, "Active: none")
				}
				if len(status.Waiting) == 0 {
					fmt.Fprintf(out, "Queue empty (capacity %d)\n", status.Capacity)
					return nil
				}
				fmt.Fprintf(out, "Waiting: %d of %d\n", len(status.Waiting), status.Capacity)
				fmt.Fprint(out, renderQueueTable(status.Waiting))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output queue as JSON")
	return cmd
}

func renderQueueTable(items []api.QueueItem) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.Itoa(item.Position),
			item.ID,
			item.Profile,
			item.Requester,
			item.Mode,
			strconv.Itoa(item.Assets),
			truncate(item.Text, 40),
		})
	}
	return renderTable(
		[]string{"#", "ID", "Profile", "Requester", "Mode", "Assets", "Text"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
