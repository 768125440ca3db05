package extractor

import (
	"fmt"
	"net/http"
	"time"
)

const systemPrompt = `You are an expert at analyzing meeting transcripts and extracting action items.
Extract all action items, tasks, and to-dos mentioned in the meeting.
For each item, identify:
- The task description
- The responsible person (if mentioned)
- The due date or deadline (if mentioned)
- Priority level (low, medium, high, critical)
- Your confidence in the extraction (0.0 to 1.0)

Return only valid JSON in this exact format:
{
  "tasks": [
    {
      "description": "...",
      "owner": "..." or null,
      "deadline": "YYYY-MM-DD" or null,
      "priority": "low|medium|high|critical",
      "confidence": 0.92
    }
  ]
}

If no action items are found, return: {"tasks": []}
Be thorough but accurate. Only extract clear action items.`

func buildPrompt(transcript string) string {
	return fmt.Sprintf(`Analyze the following meeting transcript and extract all action items:

%s

Extract all tasks, action items, and to-dos. For each item, identify the responsible person (if mentioned), deadline (if mentioned), and priority level.`, transcript)
}

func httpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}
