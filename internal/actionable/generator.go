// Package actionable turns task statistics into follow-up recommendations.
package actionable

import (
	"fmt"

	"meeting-actions-go/internal/aggregator"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

// lowConfidenceShare is the fraction of low-confidence tasks that triggers a
// review card.
const lowConfidenceShare = 0.35

// Generate returns cards most urgent first. It always returns at least one.
func Generate(s aggregator.Summary) []ActionCard {
	if s.Total == 0 {
		return []ActionCard{{
			Insight: "No action items extracted",
			Action:  "Check the transcript or rerun extraction with an LLM provider configured",
			Impact:  "Avoid follow-ups lost after the meeting",
		}}
	}

	var cards []ActionCard
	if s.UnownedUrgent > 0 {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("%d high-priority %s without an owner", s.UnownedUrgent, plural(s.UnownedUrgent, "task", "tasks")),
			Action:  "Assign owners before syncing to the tracker",
			Impact:  "Urgent work gets picked up",
		})
	}
	if s.Overdue > 0 {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("%d open %s past the deadline", s.Overdue, plural(s.Overdue, "task", "tasks")),
			Action:  "Confirm new dates with the owners",
			Impact:  "Keep commitments from the meeting realistic",
		})
	}
	if share := float64(s.LowConfidence) / float64(s.Total); share >= lowConfidenceShare {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("%.0f%% of tasks extracted with low confidence", share*100),
			Action:  "Review and confirm tasks manually",
			Impact:  "Fewer spurious tickets in the tracker",
		})
	}
	if len(cards) == 0 {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("%d tasks, mean confidence %.2f", s.Total, s.MeanConfidence),
			Action:  "Sync confirmed tasks to the tracker",
			Impact:  "Low immediate intervention",
		})
	}
	return cards
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
