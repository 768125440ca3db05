package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"meeting-actions-go/internal/processor"
)

// MeetingProcessor runs one meeting; *processor.Processor satisfies it.
type MeetingProcessor interface {
	Process(ctx context.Context, id int64) processor.Result
}

// Handler executes meeting:process tasks.
type Handler struct {
	proc MeetingProcessor
	log  *logrus.Entry
}

func NewHandler(proc MeetingProcessor, log *logrus.Entry) *Handler {
	return &Handler{proc: proc, log: log}
}

// ProcessTask reports only malformed payloads. A failed pipeline run is
// already recorded on the meeting, and a run skipped on a store error leaves
// the meeting pending; neither is a task error, so the task id is released
// and the meeting can be enqueued again.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	p, err := parsePayload(t)
	if err != nil {
		h.log.WithError(err).Warn("dropping malformed task")
		return err
	}

	res := h.proc.Process(ctx, p.MeetingID)
	entry := h.log.WithFields(logrus.Fields{
		"meeting_id": p.MeetingID,
		"run_id":     res.RunID,
		"outcome":    res.Outcome,
		"status":     res.Status,
	})
	if res.Outcome == processor.OutcomeSkipped && res.Err != nil {
		entry.WithError(res.Err).Error("meeting run aborted")
		return nil
	}
	entry.Info("task handled")
	return nil
}
