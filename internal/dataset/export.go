package dataset

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"meeting-actions-go/internal/types"
)

const (
	tasksSheet   = "Tasks"
	meetingSheet = "Meeting"
)

var taskHeader = []any{"ID", "Description", "Owner", "Deadline", "Priority", "Confidence", "Status", "Jira", "Trello"}

// ExportTasks writes a meeting's tasks to an .xlsx workbook at path.
func ExportTasks(path string, m types.Meeting, tasks []types.Task) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", tasksSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(tasksSheet, "A1", &taskHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(tasksSheet, "A1", "I1", bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetColWidth(tasksSheet, "B", "B", 60); err != nil {
		return fmt.Errorf("column width: %w", err)
	}

	for i, t := range tasks {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		deadline := ""
		if t.Deadline != nil {
			deadline = t.Deadline.UTC().Format("2006-01-02")
		}
		row := []any{t.ID, t.Description, t.OwnerName, deadline, string(t.Priority), t.Confidence, string(t.Status), t.JiraIssueKey, t.TrelloCardID}
		if err := f.SetSheetRow(tasksSheet, cell, &row); err != nil {
			return fmt.Errorf("write task %d: %w", t.ID, err)
		}
	}

	if _, err := f.NewSheet(meetingSheet); err != nil {
		return fmt.Errorf("meeting sheet: %w", err)
	}
	processed := ""
	if m.ProcessedAt != nil {
		processed = m.ProcessedAt.UTC().Format(time.RFC3339)
	}
	meta := [][]any{
		{"ID", m.ID},
		{"Title", m.Title},
		{"Audio", m.AudioRef},
		{"Status", string(m.Status)},
		{"Redacted", m.IsRedacted},
		{"Processed at", processed},
		{"Tasks", len(tasks)},
	}
	for i, kv := range meta {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(meetingSheet, cell, &kv); err != nil {
			return fmt.Errorf("write meeting: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
