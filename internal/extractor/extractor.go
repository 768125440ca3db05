// Package extractor turns transcript text into candidate action items. A
// single chat-completions provider is chosen at startup; when none is
// configured, or when it fails, a regular-expression heuristic is used.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"meeting-actions-go/internal/types"
)

// ErrNoProvider reports that no language model is configured. It is
// informational: the extractor still works through the heuristic.
var ErrNoProvider = errors.New("no LLM provider configured")

const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	DefaultGroqBaseURL   = "https://api.groq.com/openai/v1"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultLocalBaseURL  = "http://localhost:11434/v1"

	DefaultGroqModel   = "llama-3.1-70b-versatile"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultLocalModel  = "llama3.2"
)

// Config holds every credential the provider chain may consider.
type Config struct {
	GroqAPIKey   string
	OpenAIAPIKey string
	// Model overrides the hosted provider's default model.
	Model      string
	LocalMode  bool
	LocalModel string

	GroqBaseURL   string
	OpenAIBaseURL string
	LocalBaseURL  string

	HTTPTimeout time.Duration
	RetryWindow time.Duration
}

// Chain lists the usable providers in precedence order: groq, then openai,
// then the local endpoint when local mode is on.
func Chain(cfg Config) []ProviderConfig {
	var chain []ProviderConfig
	if cfg.GroqAPIKey != "" {
		model := cfg.Model
		if model == "" || strings.HasPrefix(model, "gpt-") {
			model = DefaultGroqModel
		}
		chain = append(chain, ProviderConfig{
			Name: ProviderGroq, APIKey: cfg.GroqAPIKey, Model: model, JSONMode: true,
			BaseURL: orString(cfg.GroqBaseURL, DefaultGroqBaseURL),
		})
	}
	if cfg.OpenAIAPIKey != "" {
		chain = append(chain, ProviderConfig{
			Name: ProviderOpenAI, APIKey: cfg.OpenAIAPIKey, Model: orString(cfg.Model, DefaultOpenAIModel), JSONMode: true,
			BaseURL: orString(cfg.OpenAIBaseURL, DefaultOpenAIBaseURL),
		})
	}
	if cfg.LocalMode {
		chain = append(chain, ProviderConfig{
			Name: ProviderOllama, APIKey: "ollama", Model: orString(cfg.LocalModel, DefaultLocalModel),
			BaseURL: orString(cfg.LocalBaseURL, DefaultLocalBaseURL),
		})
	}
	return chain
}

// Select returns the first provider of the chain, or ErrNoProvider.
func Select(cfg Config) (ProviderConfig, error) {
	chain := Chain(cfg)
	if len(chain) == 0 {
		return ProviderConfig{}, ErrNoProvider
	}
	return chain[0], nil
}

// Completer is the chat completion capability the extractor needs.
type Completer interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

type Source string

const (
	SourceProvider  Source = "provider"
	SourceHeuristic Source = "heuristic"
)

// Result records which path produced the candidates. ProviderErr is set when
// the provider was tried and the heuristic replaced its answer.
type Result struct {
	Tasks       []types.CandidateTask
	Source      Source
	Provider    string
	ProviderErr error
}

// Extractor is safe for concurrent use.
type Extractor struct {
	completer Completer
	log       *logrus.Entry
}

// New builds an extractor around c. A nil c yields a heuristic-only
// extractor.
func New(c Completer, log *logrus.Entry) *Extractor {
	return &Extractor{completer: c, log: log}
}

// NewFromConfig selects the active provider once and logs the choice.
func NewFromConfig(cfg Config, log *logrus.Entry) *Extractor {
	chosen, err := Select(cfg)
	if err != nil {
		log.WithError(err).Warn("action items will be extracted heuristically")
		return New(nil, log)
	}
	names := make([]string, 0, 3)
	for _, p := range Chain(cfg) {
		names = append(names, p.Name)
	}
	log.WithFields(logrus.Fields{
		"provider":   chosen.Name,
		"model":      chosen.Model,
		"candidates": strings.Join(names, ","),
	}).Info("llm provider selected")

	return New(NewClient(chosen, log, WithHTTPClient(httpClient(cfg.HTTPTimeout)), WithRetryWindow(cfg.RetryWindow)), log)
}

// Provider names the active provider, or "" when heuristic-only.
func (e *Extractor) Provider() string {
	if e.completer == nil {
		return ""
	}
	return e.completer.Name()
}

// Extract never fails; it returns an empty slice when nothing is found.
func (e *Extractor) Extract(ctx context.Context, text string) []types.CandidateTask {
	return e.ExtractDetailed(ctx, text).Tasks
}

func (e *Extractor) ExtractDetailed(ctx context.Context, text string) Result {
	if e.completer == nil || strings.TrimSpace(text) == "" {
		return Result{Tasks: Heuristic(text), Source: SourceHeuristic}
	}

	res, err := e.ExtractWithProvider(ctx, text)
	if err == nil {
		return res
	}
	e.log.WithError(err).WithField("provider", e.completer.Name()).Warn("llm extraction failed, using heuristic")
	return Result{Tasks: Heuristic(text), Source: SourceHeuristic, Provider: e.completer.Name(), ProviderErr: err}
}

// ExtractWithProvider runs only the provider path and reports its failure.
func (e *Extractor) ExtractWithProvider(ctx context.Context, text string) (Result, error) {
	if e.completer == nil {
		return Result{}, ErrNoProvider
	}
	content, err := e.completer.Complete(ctx, systemPrompt, buildPrompt(text))
	if err != nil {
		return Result{}, err
	}
	tasks, err := parseTasks(content)
	if err != nil {
		return Result{}, fmt.Errorf("%s output: %w", e.completer.Name(), err)
	}
	return Result{Tasks: tasks, Source: SourceProvider, Provider: e.completer.Name()}, nil
}

func orString(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return def
}
