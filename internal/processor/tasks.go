package processor

import (
	"math"
	"strings"
	"time"

	"meeting-actions-go/internal/types"
)

var deadlineLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// ParseDeadline accepts the date formats models commonly emit. Anything
// else yields nil.
func ParseDeadline(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// TasksFromCandidates converts extractor output into pending tasks. A bad
// deadline is dropped rather than the task; priority defaults to medium and
// confidence to 0.
func TasksFromCandidates(candidates []types.CandidateTask) []types.Task {
	tasks := make([]types.Task, 0, len(candidates))
	for _, c := range candidates {
		desc := strings.TrimSpace(c.Description)
		if desc == "" {
			continue
		}
		priority, ok := types.ParsePriority(c.Priority)
		if !ok {
			priority = types.PriorityMedium
		}
		confidence := 0.0
		if c.Confidence != nil && !math.IsNaN(*c.Confidence) {
			confidence = math.Max(0, math.Min(1, *c.Confidence))
		}
		tasks = append(tasks, types.Task{
			Description: desc,
			OwnerName:   strings.TrimSpace(c.Owner),
			Deadline:    ParseDeadline(c.Deadline),
			Priority:    priority,
			Confidence:  confidence,
			Status:      types.TaskPending,
		})
	}
	return tasks
}
