package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"meeting-actions-go/internal/store"
	"meeting-actions-go/internal/types"
)

type fakeTracker struct {
	name  string
	calls int
	err   error
}

func (f *fakeTracker) Name() string { return f.name }

func (f *fakeTracker) Push(ctx context.Context, task types.Task) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "REF-1", nil
}

func seededStore(t *testing.T) (*store.Store, int64) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "sync.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	m, err := s.CreateMeeting(ctx, "planning", "planning.wav")
	if err != nil {
		t.Fatal(err)
	}
	tasks := []types.Task{{Description: "Book the offsite venue", Priority: types.PriorityHigh, Confidence: 0.7, Status: types.TaskPending}}
	if err := s.InsertTasks(ctx, m.ID, tasks); err != nil {
		t.Fatal(err)
	}
	return s, tasks[0].ID
}

func TestSyncStoresReferenceAndConfirms(t *testing.T) {
	s, taskID := seededStore(t)
	jira := &fakeTracker{name: NameJira}
	syncer := NewSyncer(s, nullEntry(), jira, nil)
	ctx := context.Background()

	ref, err := syncer.Sync(ctx, taskID, NameJira)
	if err != nil || ref != "REF-1" {
		t.Fatalf("sync: %q %v", ref, err)
	}
	task, _ := s.GetTask(ctx, taskID)
	if task.JiraIssueKey != "REF-1" || task.Status != types.TaskConfirmed {
		t.Fatalf("unexpected task %+v", task)
	}

	again, err := syncer.Sync(ctx, taskID, NameJira)
	if err != nil || again != "REF-1" || jira.calls != 1 {
		t.Fatalf("re-sync should not push again: %q %v calls=%d", again, err, jira.calls)
	}
}

func TestSyncFailureLeavesTaskUntouched(t *testing.T) {
	s, taskID := seededStore(t)
	trello := &fakeTracker{name: NameTrello, err: errors.New("http 401: invalid key")}
	syncer := NewSyncer(s, nullEntry(), trello)
	ctx := context.Background()

	if _, err := syncer.Sync(ctx, taskID, NameTrello); err == nil {
		t.Fatal("expected push error")
	}
	task, _ := s.GetTask(ctx, taskID)
	if task.TrelloCardID != "" || task.Status != types.TaskPending {
		t.Fatalf("task changed after failed push: %+v", task)
	}
}

func TestSyncErrors(t *testing.T) {
	s, taskID := seededStore(t)
	syncer := NewSyncer(s, nullEntry(), &fakeTracker{name: NameJira})
	ctx := context.Background()

	if _, err := syncer.Sync(ctx, taskID, NameTrello); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := syncer.Sync(ctx, 9999, NameJira); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !syncer.Enabled(NameJira) || syncer.Enabled(NameTrello) {
		t.Fatal("unexpected enabled trackers")
	}
}
