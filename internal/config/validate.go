package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path must be set")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Queue.Concurrency <= 0 {
		return errors.New("queue.concurrency must be positive")
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if c.Extraction.TimeoutSeconds < 0 {
		return errors.New("extraction.timeout_seconds must not be negative")
	}
	budget := c.Transcription.TimeoutSeconds + c.Extraction.TimeoutSeconds
	if c.Queue.StuckAfterSeconds <= budget {
		return fmt.Errorf("queue.stuck_after_seconds must exceed the run budget of %ds", budget)
	}
	return nil
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	switch t.Provider {
	case "local", "remote":
	default:
		return fmt.Errorf("transcription.provider must be local or remote, got %q", t.Provider)
	}
	switch t.Task {
	case "transcribe", "translate":
	default:
		return fmt.Errorf("transcription.task must be transcribe or translate, got %q", t.Task)
	}
	if t.MaxUploadBytes <= 0 {
		return errors.New("transcription.max_upload_bytes must be positive")
	}
	if len(t.AllowedFormats) == 0 {
		return errors.New("transcription.allowed_formats must not be empty")
	}
	if t.TimeoutSeconds < 0 {
		return errors.New("transcription.timeout_seconds must not be negative")
	}
	return nil
}
