package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"meeting-actions-go/internal/actionable"
	"meeting-actions-go/internal/aggregator"
	"meeting-actions-go/internal/dataset"
	"meeting-actions-go/internal/processor"
	"meeting-actions-go/internal/store"
	"meeting-actions-go/internal/types"
	"meeting-actions-go/internal/worker"
)

func newMeetingCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newCreateCommand(ctx),
		newImportCommand(ctx),
		newProcessCommand(ctx),
		newEnqueueCommand(ctx),
		newRequeueCommand(ctx),
		newStatusCommand(ctx),
		newDeleteCommand(ctx),
	}
}

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "create <title> <audio-ref>",
		Short: "Register a meeting in pending state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			m, err := a.Store.CreateMeeting(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, m)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created meeting %d (%s)\n", m.ID, m.Status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var enqueue bool
	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Create meetings from a spreadsheet with title and audio columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := dataset.LoadMeetings(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			var queue *worker.Client
			if enqueue {
				if queue, err = ctx.queueClient(); err != nil {
					return err
				}
				defer queue.Close()
			}

			out := make([][]string, 0, len(rows))
			for _, r := range rows {
				m, err := a.Store.CreateMeeting(cmd.Context(), r.Title, r.AudioRef)
				if err != nil {
					return fmt.Errorf("row %d: %w", r.Row, err)
				}
				state := string(m.Status)
				if queue != nil {
					if _, err := queue.EnqueueMeeting(cmd.Context(), m.ID); err != nil {
						return fmt.Errorf("row %d: %w", r.Row, err)
					}
					state = "queued"
				}
				out = append(out, []string{strconv.Itoa(r.Row), strconv.FormatInt(m.ID, 10), r.Title, r.AudioRef, state})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Row", "Meeting", "Title", "Audio", "State"}, out,
				[]columnAlignment{alignRight, alignRight},
			))
			fmt.Fprintf(cmd.OutOrStdout(), "\nImported %d meetings\n", len(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Queue each imported meeting for processing")
	return cmd
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "process <meeting-id>",
		Short: "Run the pipeline for a pending meeting in this process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			proc, err := a.Processor()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			res := proc.Process(runCtx, id)

			if asJSON {
				if err := writeJSON(cmd, processResultView(res)); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Meeting %d: %s (status %s, %d tasks, extraction %s)\n",
					id, res.Outcome, orDash(string(res.Status)), res.TasksCreated, orDash(string(res.ExtractionSource)))
			}
			if res.Err != nil {
				return fmt.Errorf("meeting %d %s: %w", id, res.Outcome, res.Err)
			}
			if res.Outcome == processor.OutcomeSkipped {
				return fmt.Errorf("meeting %d was not processed (status %s)", id, orDash(string(res.Status)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func processResultView(res processor.Result) map[string]any {
	v := map[string]any{
		"meeting_id":        res.MeetingID,
		"run_id":            res.RunID,
		"outcome":           res.Outcome,
		"status":            res.Status,
		"tasks_created":     res.TasksCreated,
		"redactions":        res.Redactions,
		"extraction_source": res.ExtractionSource,
	}
	if res.Err != nil {
		v["error"] = res.Err.Error()
	}
	return v
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <meeting-id>...",
		Short: "Queue meetings for a worker to process",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			queue, err := ctx.queueClient()
			if err != nil {
				return err
			}
			defer queue.Close()
			for _, id := range ids {
				if err := enqueueOne(cmd, queue, id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func enqueueOne(cmd *cobra.Command, queue *worker.Client, id int64) error {
	_, err := queue.EnqueueMeeting(cmd.Context(), id)
	switch {
	case errors.Is(err, worker.ErrAlreadyQueued):
		fmt.Fprintf(cmd.OutOrStdout(), "Meeting %d is already queued\n", id)
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Queued meeting %d\n", id)
	return nil
}

func newRequeueCommand(ctx *commandContext) *cobra.Command {
	var enqueue bool
	cmd := &cobra.Command{
		Use:   "requeue <meeting-id>",
		Short: "Reset a failed meeting to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if err := a.Store.Requeue(cmd.Context(), id); err != nil {
				if errors.Is(err, store.ErrInvalidTransition) {
					return fmt.Errorf("meeting %d is not failed; only failed meetings can be requeued", id)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Meeting %d reset to pending\n", id)
			if !enqueue {
				return nil
			}
			queue, err := ctx.queueClient()
			if err != nil {
				return err
			}
			defer queue.Close()
			return enqueueOne(cmd, queue, id)
		},
	}
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Queue the meeting after the reset")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON   bool
		statuses []string
	)
	cmd := &cobra.Command{
		Use:   "status [meeting-id]",
		Short: "Show one meeting with its task summary, or list meetings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				filter := make([]types.MeetingStatus, 0, len(statuses))
				for _, s := range statuses {
					filter = append(filter, types.MeetingStatus(s))
				}
				meetings, err := a.Store.ListMeetings(cmd.Context(), filter...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, meetings)
				}
				rows := make([][]string, 0, len(meetings))
				for _, m := range meetings {
					rows = append(rows, []string{
						strconv.FormatInt(m.ID, 10), orDash(m.Title), string(m.Status),
						strconv.FormatBool(m.IsRedacted), formatTimePtr(m.ProcessedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Status", "Redacted", "Processed"}, rows,
					[]columnAlignment{alignRight},
				))
				return nil
			}

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			m, err := a.Store.LoadMeeting(cmd.Context(), id)
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("meeting %d: %w", id, store.ErrNotFound)
			}
			tasks, err := a.Store.ListTasks(cmd.Context(), id)
			if err != nil {
				return err
			}
			summary := aggregator.Summarize(tasks)
			cards := actionable.Generate(summary)
			if asJSON {
				return writeJSON(cmd, map[string]any{"meeting": m, "summary": summary, "recommendations": cards})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Meeting %d: %s\n", m.ID, orDash(m.Title))
			fmt.Fprintf(out, "  Status:     %s\n", m.Status)
			fmt.Fprintf(out, "  Audio:      %s\n", orDash(m.AudioRef))
			fmt.Fprintf(out, "  Redacted:   %t\n", m.IsRedacted)
			fmt.Fprintf(out, "  Processed:  %s\n", formatTimePtr(m.ProcessedAt))
			fmt.Fprintf(out, "  Tasks:      %d (mean confidence %.2f)\n", summary.Total, summary.MeanConfidence)
			for _, c := range cards {
				fmt.Fprintf(out, "  - %s: %s\n", c.Insight, c.Action)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter the list by status (repeatable)")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <meeting-id>",
		Short: "Delete a meeting and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if err := a.Store.DeleteMeeting(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted meeting %d\n", id)
			return nil
		},
	}
}
