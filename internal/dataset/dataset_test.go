package dataset

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"meeting-actions-go/internal/types"
)

func writeSheet(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		row := r
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "meetings.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMeetingsDetectsColumns(t *testing.T) {
	path := writeSheet(t, [][]any{
		{"Owner", "Meeting Title", "Recording URL"},
		{"ana", "Weekly sync", "https://cdn.example.com/sync.mp3"},
		{"ben", "", "/data/audio/retro_03.wav"},
		{"cy", "No audio", ""},
	})

	rows, err := LoadMeetings(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %+v", rows)
	}
	if rows[0].Title != "Weekly sync" || rows[0].AudioRef != "https://cdn.example.com/sync.mp3" || rows[0].Row != 2 {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].Title != "retro_03" || rows[1].Row != 3 {
		t.Fatalf("title should fall back to file name: %+v", rows[1])
	}
}

func TestLoadMeetingsErrors(t *testing.T) {
	if _, err := LoadMeetings(writeSheet(t, [][]any{{"Title", "Audio"}})); err == nil {
		t.Fatal("expected error for header-only sheet")
	}
	if _, err := LoadMeetings(writeSheet(t, [][]any{{"Title", "Notes"}, {"a", "b"}})); err == nil {
		t.Fatal("expected error when no audio column exists")
	}
	if _, err := LoadMeetings(filepath.Join(t.TempDir(), "missing.xlsx")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExportTasks(t *testing.T) {
	due := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
	processed := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)
	m := types.Meeting{ID: 4, Title: "Standup", AudioRef: "standup.wav", Status: types.MeetingCompleted, IsRedacted: true, ProcessedAt: &processed}
	tasks := []types.Task{
		{ID: 1, Description: "Send the report", OwnerName: "Alice", Deadline: &due, Priority: types.PriorityHigh, Confidence: 0.9, Status: types.TaskConfirmed, JiraIssueKey: "OPS-1"},
		{ID: 2, Description: "Book a room", Priority: types.PriorityMedium, Confidence: 0.5, Status: types.TaskPending},
	}
	path := filepath.Join(t.TempDir(), "tasks.xlsx")
	if err := ExportTasks(path, m, tasks); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 2 || sheets[0] != tasksSheet || sheets[1] != meetingSheet {
		t.Fatalf("unexpected sheets %v", sheets)
	}
	rows, err := f.GetRows(tasksSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0][1] != "Description" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if rows[1][1] != "Send the report" || rows[1][3] != "2025-03-07" || rows[1][4] != "high" || rows[1][7] != "OPS-1" {
		t.Fatalf("unexpected task row %v", rows[1])
	}
	if rows[2][3] != "" || rows[2][6] != "pending" {
		t.Fatalf("unexpected task row %v", rows[2])
	}

	status, _ := f.GetCellValue(meetingSheet, "B4")
	when, _ := f.GetCellValue(meetingSheet, "B6")
	if status != "completed" || when != "2025-03-03T09:30:00Z" {
		t.Fatalf("unexpected meeting sheet %q %q", status, when)
	}
}
