package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"meeting-actions-go/internal/types"
)

// CreateMeeting inserts a new pending meeting.
func (s *Store) CreateMeeting(ctx context.Context, title, audioRef string) (*types.Meeting, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO meetings (title, audio_ref, status, is_redacted, created_at, updated_at)
         VALUES (?, ?, ?, 0, ?, ?)`,
		nullableString(title), nullableString(audioRef), types.MeetingPending, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert meeting: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.LoadMeeting(ctx, id)
}

// LoadMeeting returns nil, nil when the meeting does not exist.
func (s *Store) LoadMeeting(ctx context.Context, id int64) (*types.Meeting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id)
	m, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load meeting: %w", err)
	}
	return m, nil
}

// SaveMeeting upserts a meeting without looking at the stored status. For an
// existing row only the mutable pipeline fields change; a zero ID inserts a
// new row and assigns m.ID. Pipeline runs use TransitionMeeting instead.
func (s *Store) SaveMeeting(ctx context.Context, m *types.Meeting) error {
	if m == nil {
		return errors.New("meeting is nil")
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = types.MeetingPending
	}

	structure, err := encodeStructure(m.Structured)
	if err != nil {
		return err
	}

	var id any
	if m.ID != 0 {
		id = m.ID
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO meetings (id, title, audio_ref, status, transcript, transcript_json, is_redacted,
                               created_at, updated_at, processed_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             status = excluded.status,
             transcript = excluded.transcript,
             transcript_json = excluded.transcript_json,
             is_redacted = excluded.is_redacted,
             updated_at = excluded.updated_at,
             processed_at = excluded.processed_at`,
		id,
		nullableString(m.Title),
		nullableString(m.AudioRef),
		m.Status,
		nullableStringPtr(m.Transcript),
		structure,
		boolToInt(m.IsRedacted),
		formatTime(m.CreatedAt),
		formatTime(m.UpdatedAt),
		nullableTime(m.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("save meeting: %w", err)
	}
	if m.ID == 0 {
		if m.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
	}
	return nil
}

// ListMeetings returns meetings newest first, optionally filtered by status.
func (s *Store) ListMeetings(ctx context.Context, statuses ...types.MeetingStatus) ([]types.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		marks := make([]string, len(statuses))
		for i, st := range statuses {
			marks[i] = "?"
			args = append(args, st)
		}
		query += ` WHERE status IN (` + strings.Join(marks, ", ") + `)`
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var out []types.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// DeleteMeeting removes a meeting and, through the foreign key, its tasks.
func (s *Store) DeleteMeeting(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM meetings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	return expectOne(res, id)
}

// Requeue resets a failed meeting to pending so it can be processed again.
// It clears everything a previous run may have written. Meetings in any
// other status are rejected with ErrInvalidTransition.
func (s *Store) Requeue(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE meetings
         SET status = ?, transcript = NULL, transcript_json = NULL, is_redacted = 0,
             processed_at = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		types.MeetingPending, formatTime(time.Now()), id, types.MeetingFailed,
	)
	if err != nil {
		return fmt.Errorf("requeue meeting: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	m, err := s.LoadMeeting(ctx, id)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("meeting %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("meeting %d is %s, only failed meetings can be requeued: %w", id, m.Status, ErrInvalidTransition)
}

// TransitionMeeting saves the mutable fields of an existing meeting only
// while its stored status is still from. Otherwise nothing is written and the
// error wraps ErrStatusChanged, or ErrNotFound when the row is gone.
func (s *Store) TransitionMeeting(ctx context.Context, m *types.Meeting, from types.MeetingStatus) error {
	return transition(ctx, s.db, m, from)
}

// CompleteMeeting records a finished run: the tasks and the completed
// meeting are written in one transaction, and only while the meeting is
// still processing.
func (s *Store) CompleteMeeting(ctx context.Context, m *types.Meeting, tasks []types.Task) error {
	if m == nil {
		return errors.New("meeting is nil")
	}
	m.Status = types.MeetingCompleted
	if m.ProcessedAt == nil {
		now := time.Now().UTC()
		m.ProcessedAt = &now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete meeting: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := transition(ctx, tx, m, types.MeetingProcessing); err != nil {
		return err
	}
	if err := insertTasks(ctx, tx, m.ID, tasks); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit complete meeting: %w", err)
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func transition(ctx context.Context, q querier, m *types.Meeting, from types.MeetingStatus) error {
	if m == nil || m.ID == 0 {
		return errors.New("transition needs a stored meeting")
	}
	structure, err := encodeStructure(m.Structured)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := q.ExecContext(ctx,
		`UPDATE meetings
         SET status = ?, transcript = ?, transcript_json = ?, is_redacted = ?, updated_at = ?, processed_at = ?
         WHERE id = ? AND status = ?`,
		m.Status, nullableStringPtr(m.Transcript), structure, boolToInt(m.IsRedacted),
		formatTime(now), nullableTime(m.ProcessedAt), m.ID, from,
	)
	if err != nil {
		return fmt.Errorf("save meeting %d: %w", m.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		m.UpdatedAt = now
		return nil
	}

	var current string
	err = q.QueryRowContext(ctx, `SELECT status FROM meetings WHERE id = ?`, m.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("meeting %d: %w", m.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read meeting status: %w", err)
	}
	return fmt.Errorf("meeting %d is %s, expected %s: %w", m.ID, current, from, ErrStatusChanged)
}

func encodeStructure(tr *types.Transcript) (any, error) {
	if tr == nil {
		return nil, nil
	}
	raw, err := json.Marshal(tr)
	if err != nil {
		return nil, fmt.Errorf("encode transcript_json: %w", err)
	}
	return string(raw), nil
}

// FailStuckProcessing marks meetings that entered processing before
// staleBefore as failed and returns how many were changed. Runs still alive
// after that lose their claim and cannot complete.
func (s *Store) FailStuckProcessing(ctx context.Context, staleBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE meetings SET status = ?, updated_at = ? WHERE status = ? AND updated_at < ?`,
		types.MeetingFailed, formatTime(time.Now()), types.MeetingProcessing, formatTime(staleBefore),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stuck meetings: %w", err)
	}
	return res.RowsAffected()
}

func expectOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("id %d: %w", id, ErrNotFound)
	}
	return nil
}
