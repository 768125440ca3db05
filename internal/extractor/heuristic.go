package extractor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"meeting-actions-go/internal/types"
)

const (
	heuristicLimit      = 10
	heuristicMinLength  = 10
	heuristicConfidence = 0.5
)

// Each pattern captures the clause after an obligation phrase or an explicit
// marker, up to and including the next sentence terminator.
var heuristicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:needs? to|will|should|must|ha(?:ve|s) to)\s+([^.!?]+(?:[.!?]|$))`),
	regexp.MustCompile(`(?i)\baction items?[:\s]+([^.!?]+(?:[.!?]|$))`),
	regexp.MustCompile(`(?i)\btodo[:\s]+([^.!?]+(?:[.!?]|$))`),
	regexp.MustCompile(`(?i)\btask[:\s]+([^.!?]+(?:[.!?]|$))`),
}

// Heuristic extracts candidates with regular expressions only. Results are
// in pattern order then position order, capped at 10, all medium priority
// with confidence 0.5.
func Heuristic(text string) []types.CandidateTask {
	out := make([]types.CandidateTask, 0)
	confidence := heuristicConfidence
	for _, re := range heuristicPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			desc := strings.TrimSpace(m[1])
			if utf8.RuneCountInString(desc) < heuristicMinLength {
				continue
			}
			c := confidence
			out = append(out, types.CandidateTask{
				Description: desc,
				Priority:    string(types.PriorityMedium),
				Confidence:  &c,
			})
			if len(out) == heuristicLimit {
				return out
			}
		}
	}
	return out
}
