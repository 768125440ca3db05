// Package worker schedules meeting runs on an asynq queue backed by Redis.
package worker

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TypeProcessMeeting = "meeting:process"

type ProcessMeetingPayload struct {
	MeetingID int64 `json:"meeting_id"`
}

// TaskID is the queue-wide identity of a meeting run. asynq rejects a second
// task with the same id while the first is still queued or running.
func TaskID(meetingID int64) string {
	return fmt.Sprintf("meeting:%d", meetingID)
}

// NewProcessMeetingTask builds a single-shot task: a run has no resumable
// state, so a failed run is never retried by the queue.
func NewProcessMeetingTask(meetingID int64) (*asynq.Task, error) {
	if meetingID <= 0 {
		return nil, fmt.Errorf("invalid meeting id %d", meetingID)
	}
	payload, err := json.Marshal(ProcessMeetingPayload{MeetingID: meetingID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeProcessMeeting, payload,
		asynq.TaskID(TaskID(meetingID)),
		asynq.MaxRetry(0),
	), nil
}

func parsePayload(t *asynq.Task) (ProcessMeetingPayload, error) {
	var p ProcessMeetingPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.MeetingID <= 0 {
		return p, fmt.Errorf("invalid meeting id %d: %w", p.MeetingID, asynq.SkipRetry)
	}
	return p, nil
}
