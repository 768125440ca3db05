package processor

import (
	"math"
	"testing"

	"meeting-actions-go/internal/types"
)

func TestParseDeadline(t *testing.T) {
	cases := map[string]string{
		"2025-03-07":           "2025-03-07",
		" 2025-03-07 ":         "2025-03-07",
		"2025-03-07T17:00:00Z": "2025-03-07",
		"2025-03-07T17:00:00":  "2025-03-07",
		"2025/03/07":           "2025-03-07",
		"":                     "",
		"Friday":               "",
		"2025-13-45":           "",
	}
	for in, want := range cases {
		got := ParseDeadline(in)
		if want == "" {
			if got != nil {
				t.Fatalf("ParseDeadline(%q) = %v, want nil", in, got)
			}
			continue
		}
		if got == nil || got.Format("2006-01-02") != want {
			t.Fatalf("ParseDeadline(%q) = %v, want %s", in, got, want)
		}
	}
}

func TestTasksFromCandidatesClampsConfidence(t *testing.T) {
	over, under, nan := 3.0, -1.0, math.NaN()
	tasks := TasksFromCandidates([]types.CandidateTask{
		{Description: "a long enough task", Confidence: &over, Priority: "CRITICAL"},
		{Description: "another long task", Confidence: &under, Priority: "someday"},
		{Description: "third long task", Confidence: &nan},
	})
	if tasks[0].Confidence != 1 || tasks[0].Priority != types.PriorityCritical {
		t.Fatalf("unexpected %+v", tasks[0])
	}
	if tasks[1].Confidence != 0 || tasks[1].Priority != types.PriorityMedium {
		t.Fatalf("unexpected %+v", tasks[1])
	}
	if tasks[2].Confidence != 0 || tasks[2].Status != types.TaskPending {
		t.Fatalf("unexpected %+v", tasks[2])
	}
}
