package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"meeting-actions-go/internal/types"
)

const (
	TrackerJira   = "jira"
	TrackerTrello = "trello"
)

// InsertTasks writes all tasks for one meeting in a single transaction:
// either every task is stored or none is. IDs, timestamps and the meeting
// id are assigned on the passed slice.
func (s *Store) InsertTasks(ctx context.Context, meetingID int64, tasks []types.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tasks: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertTasks(ctx, tx, meetingID, tasks); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tasks: %w", err)
	}
	return nil
}

func insertTasks(ctx context.Context, tx *sql.Tx, meetingID int64, tasks []types.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tasks (meeting_id, description, owner_name, deadline, priority, confidence, status,
                            created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert task: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range tasks {
		t := &tasks[i]
		t.MeetingID = meetingID
		if t.Priority == "" {
			t.Priority = types.PriorityMedium
		}
		if t.Status == "" {
			t.Status = types.TaskPending
		}
		t.CreatedAt, t.UpdatedAt = now, now
		res, err := stmt.ExecContext(ctx,
			meetingID, t.Description, nullableString(t.OwnerName), nullableTime(t.Deadline),
			t.Priority, t.Confidence, t.Status, formatTime(now), formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("insert task %d of %d: %w", i+1, len(tasks), err)
		}
		if t.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
	}
	return nil
}

// ListTasks returns a meeting's tasks in insertion order. A zero meetingID
// lists tasks of every meeting.
func (s *Store) ListTasks(ctx context.Context, meetingID int64) ([]types.Task, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if meetingID == 0 {
		rows, err = s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE meeting_id = ? ORDER BY id`, meetingID)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetTask returns nil, nil when the task does not exist.
func (s *Store) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *Store) UpdateTaskStatus(ctx context.Context, id int64, status types.TaskStatus) error {
	if _, ok := types.ParseTaskStatus(string(status)); !ok {
		return fmt.Errorf("task status %q: %w", status, ErrInvalidTransition)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return expectOne(res, id)
}

// SetTrackerRef stores the external reference returned by a tracker push.
func (s *Store) SetTrackerRef(ctx context.Context, taskID int64, tracker, ref string) error {
	var column string
	switch tracker {
	case TrackerJira:
		column = "jira_issue_key"
	case TrackerTrello:
		column = "trello_card_id"
	default:
		return fmt.Errorf("unknown tracker %q", tracker)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		nullableString(ref), formatTime(time.Now()), taskID,
	)
	if err != nil {
		return fmt.Errorf("set %s reference: %w", tracker, err)
	}
	return expectOne(res, taskID)
}
