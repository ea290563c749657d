package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"stemforge/internal/api"
	"stemforge/internal/daemonrun"
	"stemforge/internal/ipc"
	"stemforge/internal/queue"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the stemforge daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon after the in-flight job finishes",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			err := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				if resp.Message != "" {
					fmt.Fprintln(out, resp.Message)
				} else {
					fmt.Fprintln(out, "Stop request sent")
				}
				return nil
			})
			if errors.Is(err, errDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			return err
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status [JOB_ID]",
		Short: "Show daemon status, or one job when an id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if len(args) == 1 {
					resp, err := client.Status(args[0])
					if err != nil {
						return err
					}
					if statusJSON {
						return writeJSON(cmd, resp.Job)
					}
					printJob(cmd.OutOrStdout(), resp.Job, shouldColorize(cmd.OutOrStdout()))
					return nil
				}
				resp, err := client.DaemonStatus()
				if err != nil {
					return err
				}
				if statusJSON {
					return writeJSON(cmd, resp.Status)
				}
				printDaemonStatus(cmd.OutOrStdout(), resp.Status, shouldColorize(cmd.OutOrStdout()))
				return nil
			})
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print raw JSON")

	return []*cobra.Command{stopCmd, statusCmd}
}

func printDaemonStatus(out io.Writer, status api.DaemonStatus, colorize bool) {
	printSection(out, "Daemon", colorize)
	runningKind := statusError
	if status.Running {
		runningKind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("Running", runningKind, fmt.Sprintf("pid %d", status.PID), colorize))
	fmt.Fprintln(out, renderStatusLine("Socket", statusInfo, status.SocketPath, colorize))
	if status.APIBind != "" {
		fmt.Fprintln(out, renderStatusLine("HTTP API", statusInfo, status.APIBind, colorize))
	}
	workerKind := statusWarn
	if status.Workflow.Running {
		workerKind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("Worker", workerKind, yesNo(status.Workflow.Running), colorize))
	if status.Workflow.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusError, status.Workflow.LastError, colorize))
	}
	if status.Workflow.LastSweepAt != "" {
		detail := fmt.Sprintf("%s (%d evicted)", status.Workflow.LastSweepAt, status.Workflow.LastEvicted)
		fmt.Fprintln(out, renderStatusLine("Last sweep", statusInfo, detail, colorize))
	}
	fmt.Fprintln(out)

	printSection(out, "Stages", colorize)
	for _, health := range status.Workflow.StageHealth {
		kind := statusOK
		detail := "Ready"
		if !health.Ready {
			kind = statusError
			detail = health.Detail
		}
		fmt.Fprintln(out, renderStatusLine(health.Name, kind, detail, colorize))
	}
	fmt.Fprintln(out)

	printSection(out, "Dependencies", colorize)
	printDependencies(out, status.Dependencies, colorize)
	fmt.Fprintln(out)

	printSection(out, "Queue", colorize)
	rows := queueStatsRows(status.Workflow.QueueStats)
	fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	if status.Workflow.Current != nil {
		fmt.Fprintf(out, "Processing: %s (%s, %d%%)\n", status.Workflow.Current.Query, status.Workflow.Current.ID, status.Workflow.Current.Progress)
	}
}

func printDependencies(out io.Writer, statuses []api.DependencyStatus, colorize bool) {
	if len(statuses) == 0 {
		fmt.Fprintln(out, renderStatusLine("Summary", statusInfo, "No dependencies checked", colorize))
		return
	}
	for _, dep := range statuses {
		switch {
		case dep.Available:
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			fmt.Fprintln(out, renderStatusLine(dep.Name, statusOK, message, colorize))
		case dep.Optional:
			fmt.Fprintln(out, renderStatusLine(dep.Name, statusWarn, dep.Detail, colorize))
		default:
			fmt.Fprintln(out, renderStatusLine(dep.Name, statusError, dep.Detail, colorize))
		}
	}
}

// queueStatsRows lists every status in lifecycle order, including zero counts.
func queueStatsRows(stats map[string]int) [][]string {
	rows := make([][]string, 0, len(stats))
	seen := make(map[string]bool, len(stats))
	for _, status := range queue.AllStatuses() {
		name := string(status)
		seen[name] = true
		rows = append(rows, []string{name, fmt.Sprintf("%d", stats[name])})
	}
	var extra []string
	for name := range stats {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		rows = append(rows, []string{name, fmt.Sprintf("%d", stats[name])})
	}
	return rows
}
