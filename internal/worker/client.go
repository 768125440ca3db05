package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// ErrAlreadyQueued is returned when a run for the meeting is already queued
// or in flight.
var ErrAlreadyQueued = errors.New("meeting already queued")

const DefaultQueue = "default"

// Client enqueues meeting runs.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
}

type ClientOptions struct {
	Queue string
}

func NewClient(redisOpt asynq.RedisClientOpt, opts ClientOptions) *Client {
	q := opts.Queue
	if q == "" {
		q = DefaultQueue
	}
	return &Client{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		queue:     q,
	}
}

// EnqueueMeeting schedules one run for the meeting.
func (c *Client) EnqueueMeeting(ctx context.Context, meetingID int64) (*asynq.TaskInfo, error) {
	if c.client == nil {
		return nil, fmt.Errorf("nil asynq client")
	}
	t, err := NewProcessMeetingTask(meetingID)
	if err != nil {
		return nil, err
	}
	info, err := c.client.EnqueueContext(ctx, t, asynq.Queue(c.queue))
	if errors.Is(err, asynq.ErrTaskIDConflict) && c.clearArchived(meetingID) {
		info, err = c.client.EnqueueContext(ctx, t, asynq.Queue(c.queue))
	}
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil, fmt.Errorf("meeting %d: %w", meetingID, ErrAlreadyQueued)
	}
	if err != nil {
		return nil, fmt.Errorf("enqueue meeting %d: %w", meetingID, err)
	}
	return info, nil
}

// clearArchived deletes a dead task still holding the meeting's task id.
// Queued and running tasks are left alone.
func (c *Client) clearArchived(meetingID int64) bool {
	if c.inspector == nil {
		return false
	}
	info, err := c.inspector.GetTaskInfo(c.queue, TaskID(meetingID))
	if err != nil || info.State != asynq.TaskStateArchived {
		return false
	}
	return c.inspector.DeleteTask(c.queue, TaskID(meetingID)) == nil
}

func (c *Client) Close() error {
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}
