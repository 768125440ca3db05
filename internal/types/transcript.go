package types

import "encoding/json"

type Segment struct {
	ID      int     `json:"id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// Transcript is the structured form persisted alongside the flat text.
type Transcript struct {
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments"`
}

// TranscriptResult is what a transcription provider returns. RawPayload is
// the provider's own response and is never persisted.
type TranscriptResult struct {
	Text       string          `json:"text"`
	Language   string          `json:"language"`
	Duration   float64         `json:"duration,omitempty"`
	Segments   []Segment       `json:"segments"`
	RawPayload json.RawMessage `json:"-"`
}

func (r TranscriptResult) Structured() *Transcript {
	segs := make([]Segment, len(r.Segments))
	copy(segs, r.Segments)
	return &Transcript{Language: r.Language, Duration: r.Duration, Segments: segs}
}
