// Package aggregator computes task statistics for a meeting or a workspace.
package aggregator

import (
	"time"

	"meeting-actions-go/internal/types"
)

// LowConfidence marks tasks worth a human look before syncing.
const LowConfidence = 0.5

type Summary struct {
	Total          int                `json:"total"`
	ByPriority     map[string]int     `json:"by_priority"`
	ByStatus       map[string]int     `json:"by_status"`
	ByOwner        map[string]int     `json:"by_owner"`
	MeanConfidence float64            `json:"mean_confidence"`
	LowConfidence  int                `json:"low_confidence"`
	UnownedUrgent  int                `json:"unowned_urgent"`
	Overdue        int                `json:"overdue"`
	Synced         map[string]int     `json:"synced"`
	OwnerShare     map[string]float64 `json:"owner_share,omitempty"`
}

func Summarize(tasks []types.Task) Summary {
	return SummarizeAt(tasks, time.Now())
}

// SummarizeAt counts overdue tasks relative to now. Tasks without an owner
// are grouped under "unassigned".
func SummarizeAt(tasks []types.Task, now time.Time) Summary {
	s := Summary{
		Total:      len(tasks),
		ByPriority: map[string]int{},
		ByStatus:   map[string]int{},
		ByOwner:    map[string]int{},
		Synced:     map[string]int{},
	}
	sum := 0.0
	for _, t := range tasks {
		s.ByPriority[string(t.Priority)]++
		s.ByStatus[string(t.Status)]++
		owner := t.OwnerName
		if owner == "" {
			owner = "unassigned"
			if t.Priority == types.PriorityHigh || t.Priority == types.PriorityCritical {
				s.UnownedUrgent++
			}
		}
		s.ByOwner[owner]++
		sum += t.Confidence
		if t.Confidence < LowConfidence {
			s.LowConfidence++
		}
		open := t.Status == types.TaskPending || t.Status == types.TaskConfirmed
		if open && t.Deadline != nil && t.Deadline.Before(now) {
			s.Overdue++
		}
		if t.JiraIssueKey != "" {
			s.Synced["jira"]++
		}
		if t.TrelloCardID != "" {
			s.Synced["trello"]++
		}
	}
	if s.Total > 0 {
		s.MeanConfidence = sum / float64(s.Total)
		s.OwnerShare = map[string]float64{}
		for k, v := range s.ByOwner {
			s.OwnerShare[k] = float64(v) / float64(s.Total)
		}
	}
	return s
}
