package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"easel/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, worker, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			status, err := client.Status(cmd.Context())
			if err != nil {
				if asJSON {
					return writeJSON(cmd, api.DaemonStatus{})
				}
				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Easel", statusError, "Not running", colorize))
				fmt.Fprintf(out, "%s%s\n", statusIndent, wrapDialError(err, client.BaseURL()))
				return nil
			}
			if asJSON {
				return writeJSON(cmd, status)
			}
			for _, line := range statusLines(status, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output status as JSON")
	return cmd
}

func statusLines(status *api.DaemonStatus, colorize bool) []string {
	var lines []string
	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	if status.Running {
		lines = append(lines, renderStatusLine("Easel", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Easel", statusWarn, "Stopped", colorize))
	}
	lines = append(lines, renderStatusLine("Backend", statusInfo, status.Backend, colorize))
	lines = append(lines, renderStatusLine("History", statusInfo, status.HistoryDBPath, colorize))
	lines = append(lines, renderStatusLine("Lock", statusInfo, status.LockFilePath, colorize))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Worker", colorize)...)
	lines = append(lines, workerLines(status.Worker, colorize)...)

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Queue", colorize)...)
	queueKind := statusOK
	if status.Queue.Capacity > 0 && len(status.Queue.Waiting) >= status.Queue.Capacity {
		queueKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Waiting", queueKind,
		fmt.Sprintf("%d of %d", len(status.Queue.Waiting), status.Queue.Capacity), colorize))
	lines = append(lines, renderStatusLine("Pending assemblies", statusInfo,
		fmt.Sprintf("%d", status.PendingAssemblies), colorize))

	if len(status.HistoryStats) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("History", colorize)...)
		for _, name := range api.SortedStatuses(status.HistoryStats) {
			lines = append(lines, renderStatusLine(titleCase(name), jobStatusKind(name),
				fmt.Sprintf("%d", status.HistoryStats[name]), colorize))
		}
	}
	return lines
}

func workerLines(worker api.WorkerStatus, colorize bool) []string {
	var lines []string
	switch {
	case !worker.Running:
		lines = append(lines, renderStatusLine("Worker", statusWarn, "Stopped", colorize))
	case worker.Busy:
		msg := "Busy"
		if worker.ActiveID != "" {
			msg = fmt.Sprintf("Busy with %s", worker.ActiveID)
		}
		if worker.Stage != "" {
			msg += fmt.Sprintf(" (%s)", worker.Stage)
		}
		lines = append(lines, renderStatusLine("Worker", statusInfo, msg, colorize))
	default:
		lines = append(lines, renderStatusLine("Worker", statusOK, "Idle", colorize))
	}
	lines = append(lines, renderStatusLine("Processed", statusInfo,
		fmt.Sprintf("%d (%d failed)", worker.Processed, worker.Failed), colorize))
	if worker.Last != nil {
		kind := jobStatusKind(worker.Last.Status)
		msg := fmt.Sprintf("%s %s %s", worker.Last.RequestID, worker.Last.Profile, worker.Last.Status)
		if worker.Last.ErrorKind != "" {
			msg += " (" + worker.Last.ErrorKind + ")"
		}
		if worker.Last.DurationMS > 0 {
			msg += " in " + (time.Duration(worker.Last.DurationMS) * time.Millisecond).String()
		}
		lines = append(lines, renderStatusLine("Last job", kind, msg, colorize))
	}
	if worker.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, worker.LastError, colorize))
	}
	return lines
}

func titleCase(value string) string {
	if value == "" {
		return value
	}
	value = strings.ReplaceAll(value, "_", " ")
	return strings.ToUpper(value[:1]) + value[1:]
}
