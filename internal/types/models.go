package types

import (
	"strings"
	"time"
)

type MeetingStatus string

const (
	MeetingPending    MeetingStatus = "pending"
	MeetingProcessing MeetingStatus = "processing"
	MeetingCompleted  MeetingStatus = "completed"
	MeetingFailed     MeetingStatus = "failed"
)

// Terminal reports whether no pipeline run may start from this status.
func (s MeetingStatus) Terminal() bool {
	return s == MeetingCompleted || s == MeetingFailed
}

type Meeting struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title,omitempty"`
	AudioRef    string        `json:"audio_ref,omitempty"`
	Status      MeetingStatus `json:"status"`
	Transcript  *string       `json:"transcript,omitempty"`
	Structured  *Transcript   `json:"transcript_json,omitempty"`
	IsRedacted  bool          `json:"is_redacted"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority normalizes a free-form priority; ok is false for unknown values.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p, true
	default:
		return PriorityMedium, false
	}
}

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskConfirmed TaskStatus = "confirmed"
	TaskCompleted TaskStatus = "completed"
	TaskCancelled TaskStatus = "cancelled"
)

func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch st := TaskStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case TaskPending, TaskConfirmed, TaskCompleted, TaskCancelled:
		return st, true
	default:
		return "", false
	}
}

type Task struct {
	ID           int64      `json:"id"`
	MeetingID    int64      `json:"meeting_id"`
	Description  string     `json:"description"`
	OwnerName    string     `json:"owner_name,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	Priority     Priority   `json:"priority"`
	Confidence   float64    `json:"confidence"`
	Status       TaskStatus `json:"status"`
	JiraIssueKey string     `json:"jira_issue_key,omitempty"`
	TrelloCardID string     `json:"trello_card_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CandidateTask is one unpersisted action item as produced by extraction.
// It mirrors the {"tasks": [...]} JSON shape requested from the model.
type CandidateTask struct {
	Description string   `json:"description"`
	Owner       string   `json:"owner,omitempty"`
	Deadline    string   `json:"deadline,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
}
