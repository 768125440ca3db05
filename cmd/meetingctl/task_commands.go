package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"meeting-actions-go/internal/dataset"
	"meeting-actions-go/internal/store"
	"meeting-actions-go/internal/tracker"
	"meeting-actions-go/internal/types"
)

func newTaskCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newTasksCommand(ctx),
		newTaskStatusCommand(ctx),
		newExportCommand(ctx),
		newSyncCommand(ctx),
	}
}

func newTasksCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tasks [meeting-id]",
		Short: "List extracted tasks, for one meeting or all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var meetingID int64
			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				meetingID = id
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			tasks, err := a.Store.ListTasks(cmd.Context(), meetingID)
			if err != nil {
				return err
			}
			if asJSON {
				if tasks == nil {
					tasks = []types.Task{}
				}
				return writeJSON(cmd, tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTasks(tasks))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func renderTasks(tasks []types.Task) string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			strconv.FormatInt(t.MeetingID, 10),
			ellipsize(t.Description, 60),
			orDash(t.OwnerName),
			formatDate(t.Deadline),
			string(t.Priority),
			strconv.FormatFloat(t.Confidence, 'f', 2, 64),
			string(t.Status),
			trackerRefs(t),
		})
	}
	return renderTable(
		[]string{"ID", "Meeting", "Description", "Owner", "Deadline", "Priority", "Conf", "Status", "Tracker"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func newTaskStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "task-status <task-id> <pending|confirmed|completed|cancelled>",
		Short: "Change a task's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			status, ok := types.ParseTaskStatus(args[1])
			if !ok {
				return fmt.Errorf("unknown task status %q", args[1])
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if err := a.Store.UpdateTaskStatus(cmd.Context(), id, status); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d is now %s\n", id, status)
			return nil
		},
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <meeting-id> <file.xlsx>",
		Short: "Write a meeting's tasks to a spreadsheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp()
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
			if err := dataset.ExportTasks(args[1], *m, tasks); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d tasks to %s\n", len(tasks), args[1])
			return nil
		},
	}
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var trackerName string
	cmd := &cobra.Command{
		Use:   "sync <task-id>...",
		Short: "Push tasks to Jira or Trello",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(strings.TrimSpace(trackerName))
			if name != tracker.NameJira && name != tracker.NameTrello {
				return fmt.Errorf("--tracker must be %s or %s", tracker.NameJira, tracker.NameTrello)
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			for _, id := range ids {
				ref, err := a.Syncer.Sync(cmd.Context(), id, name)
				if err != nil {
					return fmt.Errorf("task %d: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %d -> %s %s\n", id, name, ref)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&trackerName, "tracker", "t", tracker.NameJira, "Tracker to push to (jira|trello)")
	return cmd
}
