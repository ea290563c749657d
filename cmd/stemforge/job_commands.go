package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stemforge/internal/api"
	"stemforge/internal/config"
	"stemforge/internal/ipc"
	"stemforge/internal/queue"
)

const waitPollInterval = 500 * time.Millisecond

func newJobCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSubmitCommand(ctx),
		newJobsCommand(ctx),
		newQueueCommand(ctx),
		newMetadataCommand(ctx),
	}
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var output string
	var upload bool
	var metadata map[string]string
	var wait bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "submit QUERY",
		Short: "Queue a song for acquisition and stem separation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.SubmitRequest{
				Query:           strings.Join(args, " "),
				UploadRequested: upload,
				Metadata:        metadata,
			}
			if strings.TrimSpace(output) != "" {
				dir, err := config.ExpandPath(output)
				if err != nil {
					return fmt.Errorf("resolve output directory: %w", err)
				}
				abs, err := filepath.Abs(dir)
				if err != nil {
					return fmt.Errorf("resolve output directory: %w", err)
				}
				req.OutputDirectory = abs
			}
			if err := req.Validate(); err != nil {
				return err
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(ipc.SubmitRequest{SubmitRequest: req})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !wait {
					if asJSON {
						return writeJSON(cmd, resp.SubmitResponse)
					}
					fmt.Fprintf(out, "Queued job %s (position %d)\n", resp.JobID, resp.QueuePosition)
					return nil
				}
				if !asJSON {
					fmt.Fprintf(out, "Queued job %s (position %d)\n", resp.JobID, resp.QueuePosition)
				}
				job, err := waitForJob(cmd.Context(), client, resp.JobID, func(job api.Job) {
					if !asJSON {
						fmt.Fprintf(out, "  %3d%% %s\n", job.Progress, job.Message)
					}
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, job)
				}
				printJob(out, job, shouldColorize(out))
				if job.Status == string(queue.StatusFailed) {
					return errors.New("job failed")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Directory that receives the stem archive")
	cmd.Flags().BoolVar(&upload, "upload", false, "Publish the archive to the configured remote target")
	cmd.Flags().StringToStringVarP(&metadata, "meta", "m", nil, "Attach metadata (key=value, repeatable)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the job to finish and print its result")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	return cmd
}

// waitForJob polls until the job is terminal. onChange runs whenever the
// progress or message moves.
func waitForJob(ctx context.Context, client *ipc.Client, id string, onChange func(api.Job)) (api.Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	var last api.Job
	for {
		resp, err := client.Status(id)
		if err != nil {
			return api.Job{}, err
		}
		job := resp.Job
		if onChange != nil && (job.Progress != last.Progress || job.Message != last.Message) {
			onChange(job)
		}
		last = job
		if status, ok := queue.ParseStatus(job.Status); ok && status.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return api.Job{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List retained jobs in submission order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.List(statuses...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Jobs)
				}
				out := cmd.OutOrStdout()
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Status", "Progress", "Query", "Message"},
					jobRows(resp.Jobs),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (pending, processing, completed, failed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	return cmd
}

func jobRows(jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID,
			job.Status,
			fmt.Sprintf("%d%%", job.Progress),
			job.Query,
			job.Message,
		})
	}
	return rows
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show queue depth and the job being processed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Queue()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Summary)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				summary := resp.Summary
				fmt.Fprintf(out, "Pending: %d\n", summary.QueueLength)
				if summary.Processing != nil {
					fmt.Fprintln(out, renderStatusLine("Processing", statusWarn,
						fmt.Sprintf("%s (%s, %d%%)", summary.Processing.Query, summary.Processing.ID, summary.Processing.Progress), colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Processing", statusInfo, "idle", colorize))
				}
				fmt.Fprint(out, renderTable([]string{"Status", "Count"}, queueStatsRows(summary.Counts), []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	return cmd
}

func newMetadataCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata JOB_ID KEY=VALUE...",
		Short: "Attach metadata to an existing job",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseKeyValues(args[1:])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.UpdateMetadata(args[0], values)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s now has %d metadata keys\n", resp.Job.ID, len(resp.Job.Metadata))
				return nil
			})
		},
	}
}

func parseKeyValues(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q (expected key=value)", arg)
		}
		values[key] = value
	}
	return values, nil
}

func printJob(out io.Writer, job api.Job, colorize bool) {
	printSection(out, "Job "+job.ID, colorize)
	fmt.Fprintln(out, renderStatusLine("Query", statusInfo, job.Query, colorize))
	fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job.Status), fmt.Sprintf("%s (%d%%) %s", job.Status, job.Progress, job.Message), colorize))
	if job.QueuePosition != nil {
		fmt.Fprintln(out, renderStatusLine("Queue position", statusInfo, fmt.Sprintf("%d", *job.QueuePosition), colorize))
	}
	if job.OutputDirectory != "" {
		fmt.Fprintln(out, renderStatusLine("Output", statusInfo, job.OutputDirectory, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Created", statusInfo, job.CreatedAt, colorize))
	if job.CompletedAt != "" {
		fmt.Fprintln(out, renderStatusLine("Finished", statusInfo, job.CompletedAt, colorize))
	}
	if job.Error != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, job.Error, colorize))
	}
	if result := job.Result; result != nil {
		if result.Title != "" {
			fmt.Fprintln(out, renderStatusLine("Title", statusInfo, result.Title, colorize))
		}
		if result.Strategy != "" {
			fmt.Fprintln(out, renderStatusLine("Strategy", statusInfo, result.Strategy, colorize))
		}
		if len(result.Stems) > 0 {
			fmt.Fprintln(out, renderStatusLine("Stems", statusInfo, strings.Join(result.Stems, ", "), colorize))
		}
		archiveDetail := result.ArchivePath
		if !result.Retained {
			archiveDetail += " (not retained)"
		}
		fmt.Fprintln(out, renderStatusLine("Archive", statusOK, archiveDetail, colorize))
		if result.PublishedTo != "" {
			fmt.Fprintln(out, renderStatusLine("Published", statusOK, result.PublishedTo, colorize))
		}
		for _, warning := range result.Warnings {
			fmt.Fprintln(out, renderStatusLine("Warning", statusWarn, warning, colorize))
		}
	}
	for _, key := range slices.Sorted(maps.Keys(job.Metadata)) {
		fmt.Fprintln(out, renderStatusLine("meta."+key, statusInfo, job.Metadata[key], colorize))
	}
}
