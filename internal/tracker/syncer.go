package tracker

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"meeting-actions-go/internal/store"
	"meeting-actions-go/internal/types"
)

// TaskStore is the persistence Sync needs.
type TaskStore interface {
	GetTask(ctx context.Context, id int64) (*types.Task, error)
	SetTrackerRef(ctx context.Context, taskID int64, tracker, ref string) error
	UpdateTaskStatus(ctx context.Context, id int64, status types.TaskStatus) error
}

// Syncer pushes stored tasks to configured trackers.
type Syncer struct {
	store    TaskStore
	trackers map[string]Tracker
	log      *logrus.Entry
}

// NewSyncer registers trackers by name; nil entries are ignored.
func NewSyncer(s TaskStore, log *logrus.Entry, trackers ...Tracker) *Syncer {
	m := make(map[string]Tracker, len(trackers))
	for _, t := range trackers {
		if t != nil {
			m[t.Name()] = t
		}
	}
	return &Syncer{store: s, trackers: m, log: log}
}

// Enabled reports whether a tracker with this name was registered.
func (s *Syncer) Enabled(name string) bool {
	_, ok := s.trackers[name]
	return ok
}

// Sync pushes one task to the named tracker and stores the reference. A task
// that already has a reference for that tracker is not pushed again.
func (s *Syncer) Sync(ctx context.Context, taskID int64, name string) (string, error) {
	t, ok := s.trackers[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrNotConfigured)
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return "", err
	}
	if task == nil {
		return "", fmt.Errorf("task %d: %w", taskID, store.ErrNotFound)
	}
	log := s.log.WithFields(logrus.Fields{"task_id": taskID, "tracker": name})

	if ref := ExistingRef(*task, name); ref != "" {
		log.WithField("ref", ref).Debug("task already synced")
		return ref, nil
	}

	ref, err := t.Push(ctx, *task)
	if err != nil {
		log.WithError(err).Warn("tracker push failed")
		return "", err
	}
	if err := s.store.SetTrackerRef(ctx, taskID, name, ref); err != nil {
		return ref, fmt.Errorf("store %s reference %s: %w", name, ref, err)
	}
	if task.Status == types.TaskPending {
		if err := s.store.UpdateTaskStatus(ctx, taskID, types.TaskConfirmed); err != nil {
			return ref, fmt.Errorf("confirm task: %w", err)
		}
	}
	log.WithField("ref", ref).Info("task synced")
	return ref, nil
}
