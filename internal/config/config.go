// Package config loads service settings from an optional TOML file and the
// environment. Environment variables win over the file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

type Server struct {
	Port      int    `toml:"port"`
	UploadDir string `toml:"upload_dir"`
}

type Database struct {
	Path string `toml:"path"`
}

// Queue configures the Redis-backed scheduler.
type Queue struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Name          string `toml:"name"`
	Concurrency   int    `toml:"concurrency"`
	// StuckAfterSeconds is how long a meeting may stay in processing before
	// a starting worker treats its run as dead.
	StuckAfterSeconds int `toml:"stuck_after_seconds"`
}

type Transcription struct {
	// Provider is "local" (whisper CLI) or "remote" (OpenAI-compatible API).
	Provider       string   `toml:"provider"`
	WhisperBinary  string   `toml:"whisper_binary"`
	WhisperModel   string   `toml:"whisper_model"`
	WorkDir        string   `toml:"work_dir"`
	APIKey         string   `toml:"api_key"`
	BaseURL        string   `toml:"base_url"`
	RemoteModel    string   `toml:"remote_model"`
	Language       string   `toml:"language"`
	Task           string   `toml:"task"`
	AllowedFormats []string `toml:"allowed_formats"`
	MaxUploadBytes int64    `toml:"max_upload_bytes"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

type Extraction struct {
	Enabled        bool   `toml:"enabled"`
	GroqAPIKey     string `toml:"groq_api_key"`
	OpenAIAPIKey   string `toml:"openai_api_key"`
	Model          string `toml:"model"`
	LocalMode      bool   `toml:"local_mode"`
	LocalModel     string `toml:"local_model"`
	LocalBaseURL   string `toml:"local_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type Redaction struct {
	Enabled bool `toml:"enabled"`
}

type Jira struct {
	BaseURL    string `toml:"base_url"`
	Email      string `toml:"email"`
	APIToken   string `toml:"api_token"`
	ProjectKey string `toml:"project_key"`
	IssueType  string `toml:"issue_type"`
}

type Trello struct {
	APIKey   string `toml:"api_key"`
	APIToken string `toml:"api_token"`
	BoardID  string `toml:"board_id"`
	ListID   string `toml:"list_id"`
}

type Logging struct {
	Environment string `toml:"environment"`
	Level       string `toml:"level"`
}

type Config struct {
	Server        Server        `toml:"server"`
	Database      Database      `toml:"database"`
	Queue         Queue         `toml:"queue"`
	Transcription Transcription `toml:"transcription"`
	Extraction    Extraction    `toml:"extraction"`
	Redaction     Redaction     `toml:"redaction"`
	Jira          Jira          `toml:"jira"`
	Trello        Trello        `toml:"trello"`
	Logging       Logging       `toml:"logging"`
}

// Load reads path when it is non-empty, applies environment overrides and
// validates the result. A named file that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteSample writes the annotated sample configuration. An existing file
// is left alone.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o600)
}

func (t Transcription) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

func (e Extraction) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

func (q Queue) StuckAfter() time.Duration {
	return time.Duration(q.StuckAfterSeconds) * time.Second
}

// Addr is the HTTP listen address.
func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}
