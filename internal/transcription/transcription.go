// Package transcription turns a meeting's audio artifact into text plus timed
// segments. One Provider is selected per process: a locally installed whisper
// CLI or the hosted OpenAI audio API.
package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"meeting-actions-go/internal/types"
)

type Task string

const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

type Options struct {
	// Language is an optional ISO-639-1 hint such as "en".
	Language string
	Task     Task
}

func (o Options) task() Task {
	if o.Task == TaskTranslate {
		return TaskTranslate
	}
	return TaskTranscribe
}

// Provider is safe for concurrent use once constructed.
type Provider interface {
	Name() string
	// Transcribe either returns a complete result or an *Error.
	Transcribe(ctx context.Context, audioRef string, opts Options) (types.TranscriptResult, error)
}

const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
)

type Config struct {
	Provider string

	WhisperBinary string
	WhisperModel  string
	WorkDir       string

	APIKey         string
	BaseURL        string
	RemoteModel    string
	AllowedFormats []string
	MaxUploadBytes int64

	// HTTPTimeout bounds one HTTP attempt; RetryWindow bounds all attempts.
	HTTPTimeout time.Duration
	RetryWindow time.Duration
}

// New builds the configured provider. A missing engine or credential fails
// here with ErrProviderUnavailable rather than on the first call.
func New(cfg Config, log *logrus.Entry) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderLocal:
		return NewLocal(cfg, log)
	case ProviderRemote:
		return NewRemote(cfg, log)
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
}

// whisperOutput is the JSON written by the whisper CLI and returned by the
// OpenAI verbose_json format. Both share this subset.
type whisperOutput struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func decodeWhisperJSON(raw []byte) (types.TranscriptResult, error) {
	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return types.TranscriptResult{}, fmt.Errorf("decode transcript: %w", err)
	}
	res := types.TranscriptResult{
		Text:       strings.TrimSpace(out.Text),
		Language:   out.Language,
		Duration:   out.Duration,
		Segments:   make([]types.Segment, 0, len(out.Segments)),
		RawPayload: json.RawMessage(raw),
	}
	if res.Language == "" {
		res.Language = "unknown"
	}
	for _, s := range out.Segments {
		res.Segments = append(res.Segments, types.Segment{
			ID:    s.ID,
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
	}
	if res.Duration == 0 && len(res.Segments) > 0 {
		res.Duration = res.Segments[len(res.Segments)-1].End
	}
	return res, nil
}
