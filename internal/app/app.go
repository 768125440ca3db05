// Package app builds the long-lived components of a process from its
// configuration. Each executable constructs exactly one App.
package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"meeting-actions-go/internal/config"
	"meeting-actions-go/internal/extractor"
	"meeting-actions-go/internal/logger"
	"meeting-actions-go/internal/processor"
	"meeting-actions-go/internal/redaction"
	"meeting-actions-go/internal/store"
	"meeting-actions-go/internal/tracker"
	"meeting-actions-go/internal/transcription"
)

type App struct {
	Config *config.Config
	Log    *logger.Logger
	Store  *store.Store
	// Redactor is nil when redaction is disabled.
	Redactor *redaction.Engine
	// Extractor is nil when extraction is disabled.
	Extractor *extractor.Extractor
	Syncer    *tracker.Syncer

	mu        sync.Mutex
	processor *processor.Processor
}

// New opens the store and builds every component that needs no external
// engine. The transcription provider is built on first use by Processor.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Log: log, Store: st}

	if cfg.Redaction.Enabled {
		a.Redactor = redaction.New()
	}
	if cfg.Extraction.Enabled {
		a.Extractor = extractor.NewFromConfig(ExtractorConfig(cfg), log.Component("extractor"))
	}

	trackers, err := buildTrackers(cfg, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	a.Syncer = tracker.NewSyncer(st, log.Component("tracker"), trackers...)
	return a, nil
}

// Processor returns the pipeline orchestrator, building the transcription
// provider once. It fails with transcription.ErrProviderUnavailable when the
// configured engine cannot be used.
func (a *App) Processor() (*processor.Processor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.processor != nil {
		return a.processor, nil
	}

	log := a.Log.Component("transcription")
	provider, err := transcription.New(TranscriptionConfig(a.Config), log)
	if err != nil {
		return nil, err
	}
	log.WithField("provider", provider.Name()).Info("transcription provider ready")

	t := a.Config.Transcription
	opts := []processor.Option{
		processor.WithTranscriptionOptions(transcription.Options{Language: t.Language, Task: transcription.Task(t.Task)}),
		processor.WithTimeouts(t.Timeout(), a.Config.Extraction.Timeout()),
	}
	if a.Redactor != nil {
		opts = append(opts, processor.WithRedactor(a.Redactor))
	}
	if a.Extractor != nil {
		opts = append(opts, processor.WithExtractor(a.Extractor))
	}
	a.processor = processor.New(a.Store, provider, a.Log.Component("processor"), opts...)
	return a.processor, nil
}

// RedisOpt is the queue connection shared by clients and servers.
func (a *App) RedisOpt() asynq.RedisClientOpt {
	q := a.Config.Queue
	return asynq.RedisClientOpt{Addr: q.RedisAddr, Password: q.RedisPassword, DB: q.RedisDB}
}

func (a *App) Close() error {
	return a.Store.Close()
}

func TranscriptionConfig(cfg *config.Config) transcription.Config {
	t := cfg.Transcription
	return transcription.Config{
		Provider:       t.Provider,
		WhisperBinary:  t.WhisperBinary,
		WhisperModel:   t.WhisperModel,
		WorkDir:        t.WorkDir,
		APIKey:         t.APIKey,
		BaseURL:        t.BaseURL,
		RemoteModel:    t.RemoteModel,
		AllowedFormats: t.AllowedFormats,
		MaxUploadBytes: t.MaxUploadBytes,
		RetryWindow:    time.Minute,
	}
}

func ExtractorConfig(cfg *config.Config) extractor.Config {
	e := cfg.Extraction
	return extractor.Config{
		GroqAPIKey:   e.GroqAPIKey,
		OpenAIAPIKey: e.OpenAIAPIKey,
		Model:        e.Model,
		LocalMode:    e.LocalMode,
		LocalModel:   e.LocalModel,
		LocalBaseURL: e.LocalBaseURL,
	}
}

// buildTrackers enables every tracker whose credentials are present.
func buildTrackers(cfg *config.Config, log *logger.Logger) ([]tracker.Tracker, error) {
	var out []tracker.Tracker
	tlog := log.Component("tracker")

	if cfg.Jira.APIToken != "" {
		j, err := tracker.NewJira(tracker.JiraConfig{
			BaseURL:    cfg.Jira.BaseURL,
			Email:      cfg.Jira.Email,
			APIToken:   cfg.Jira.APIToken,
			ProjectKey: cfg.Jira.ProjectKey,
			IssueType:  cfg.Jira.IssueType,
		}, tlog)
		switch {
		case errors.Is(err, tracker.ErrNotConfigured):
			tlog.WithError(err).Warn("jira credentials incomplete, sync disabled")
		case err != nil:
			return nil, fmt.Errorf("jira: %w", err)
		default:
			out = append(out, j)
		}
	}

	if cfg.Trello.APIKey != "" {
		t, err := tracker.NewTrello(tracker.TrelloConfig{
			APIKey:   cfg.Trello.APIKey,
			APIToken: cfg.Trello.APIToken,
			BoardID:  cfg.Trello.BoardID,
			ListID:   cfg.Trello.ListID,
		}, tlog)
		switch {
		case errors.Is(err, tracker.ErrNotConfigured):
			tlog.WithError(err).Warn("trello credentials incomplete, sync disabled")
		case err != nil:
			return nil, fmt.Errorf("trello: %w", err)
		default:
			out = append(out, t)
		}
	}
	return out, nil
}
