// Package tracker pushes extracted tasks to external issue trackers.
package tracker

import (
	"context"
	"errors"

	"meeting-actions-go/internal/store"
	"meeting-actions-go/internal/types"
)

var (
	// ErrNotConfigured means the tracker's credentials are missing or the
	// tracker was not enabled.
	ErrNotConfigured = errors.New("tracker not configured")
)

const (
	NameJira   = store.TrackerJira
	NameTrello = store.TrackerTrello
)

// Tracker creates one external item per task and returns its reference.
type Tracker interface {
	Name() string
	Push(ctx context.Context, task types.Task) (string, error)
}

// ExistingRef returns the reference a task already carries for tracker.
func ExistingRef(task types.Task, tracker string) string {
	switch tracker {
	case NameJira:
		return task.JiraIssueKey
	case NameTrello:
		return task.TrelloCardID
	default:
		return ""
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
