package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"meeting-actions-go/internal/types"
)

var errNoJSON = errors.New("no JSON object in model output")

// extractContentFromChoices reads choices[0].message.content from an
// OpenAI-style chat completion body.
func extractContentFromChoices(body []byte) string {
	var obj struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &obj); err != nil || len(obj.Choices) == 0 {
		return ""
	}
	return obj.Choices[0].Message.Content
}

// extractJSON finds the first balanced JSON object in s after stripping
// markdown fences.
func extractJSON(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, r := range []string{"```json", "```JSON", "```"} {
		s = strings.ReplaceAll(s, r, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return ""
}

// parseTasks decodes the {"tasks": [...]} document. A missing or non-array
// "tasks" key is an error so the caller can fall back.
func parseTasks(content string) ([]types.CandidateTask, error) {
	doc := extractJSON(content)
	if doc == "" {
		return nil, errNoJSON
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &envelope); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	rawTasks, ok := envelope["tasks"]
	if !ok {
		return nil, errors.New(`model output has no "tasks" key`)
	}
	var items []map[string]any
	if err := json.Unmarshal(rawTasks, &items); err != nil {
		return nil, fmt.Errorf(`"tasks" is not a list of objects: %w`, err)
	}

	out := make([]types.CandidateTask, 0, len(items))
	for _, item := range items {
		c := types.CandidateTask{
			Description: strings.TrimSpace(stringField(item, "description")),
			Owner:       strings.TrimSpace(stringField(item, "owner")),
			Deadline:    strings.TrimSpace(stringField(item, "deadline")),
		}
		if c.Description == "" {
			continue
		}
		if p, ok := types.ParsePriority(stringField(item, "priority")); ok {
			c.Priority = string(p)
		}
		if v, ok := numberField(item, "confidence"); ok {
			v = math.Max(0, math.Min(1, v))
			c.Confidence = &v
		}
		out = append(out, c)
	}
	return out, nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		if strings.EqualFold(v, "null") || strings.EqualFold(v, "none") {
			return ""
		}
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func numberField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, !math.IsNaN(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil && !math.IsNaN(f)
	default:
		return 0, false
	}
}
