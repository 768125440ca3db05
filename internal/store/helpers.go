package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"meeting-actions-go/internal/types"
)

const (
	meetingColumns = "id, title, audio_ref, status, transcript, transcript_json, is_redacted, created_at, updated_at, processed_at"
	taskColumns    = "id, meeting_id, description, owner_name, deadline, priority, confidence, status, jira_issue_key, trello_card_id, created_at, updated_at"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row scanner) (*types.Meeting, error) {
	var (
		m            types.Meeting
		title        sql.NullString
		audioRef     sql.NullString
		status       string
		transcript   sql.NullString
		structure    sql.NullString
		isRedacted   int64
		createdRaw   string
		updatedRaw   string
		processedRaw sql.NullString
	)
	if err := row.Scan(&m.ID, &title, &audioRef, &status, &transcript, &structure, &isRedacted,
		&createdRaw, &updatedRaw, &processedRaw); err != nil {
		return nil, err
	}
	m.Title = title.String
	m.AudioRef = audioRef.String
	m.Status = types.MeetingStatus(status)
	m.IsRedacted = isRedacted != 0
	if transcript.Valid {
		text := transcript.String
		m.Transcript = &text
	}
	if structure.Valid && structure.String != "" {
		var tr types.Transcript
		if err := json.Unmarshal([]byte(structure.String), &tr); err != nil {
			return nil, fmt.Errorf("decode transcript_json for meeting %d: %w", m.ID, err)
		}
		m.Structured = &tr
	}
	m.CreatedAt, _ = parseTime(createdRaw)
	m.UpdatedAt, _ = parseTime(updatedRaw)
	m.ProcessedAt = parseNullableTime(processedRaw)
	return &m, nil
}

func scanTask(row scanner) (*types.Task, error) {
	var (
		t           types.Task
		owner       sql.NullString
		deadlineRaw sql.NullString
		priority    string
		status      string
		jiraKey     sql.NullString
		trelloID    sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := row.Scan(&t.ID, &t.MeetingID, &t.Description, &owner, &deadlineRaw, &priority, &t.Confidence,
		&status, &jiraKey, &trelloID, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	t.OwnerName = owner.String
	t.Deadline = parseNullableTime(deadlineRaw)
	t.Priority = types.Priority(priority)
	t.Status = types.TaskStatus(status)
	t.JiraIssueKey = jiraKey.String
	t.TrelloCardID = trelloID.String
	t.CreatedAt, _ = parseTime(createdRaw)
	t.UpdatedAt, _ = parseTime(updatedRaw)
	return &t, nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTime(*t)
}

// timeLayout is fixed width so stored timestamps compare as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, raw)
}

func parseNullableTime(raw sql.NullString) *time.Time {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
