package config

import (
	"fmt"
	"strconv"
	"strings"
)

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("ENVIRONMENT", &c.Logging.Environment)
	str("LOG_LEVEL", &c.Logging.Level)
	if err := integer("PORT", &c.Server.Port); err != nil {
		return err
	}
	str("UPLOAD_DIR", &c.Server.UploadDir)
	str("DATABASE_PATH", &c.Database.Path)
	str("REDIS_ADDR", &c.Queue.RedisAddr)
	str("REDIS_PASSWORD", &c.Queue.RedisPassword)

	str("WHISPER_MODEL", &c.Transcription.WhisperModel)
	str("WHISPER_BINARY", &c.Transcription.WhisperBinary)
	if v, ok := lookup("USE_LOCAL_WHISPER"); ok && strings.TrimSpace(v) != "" {
		local, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("USE_LOCAL_WHISPER: %w", err)
		}
		c.Transcription.Provider = "remote"
		if local {
			c.Transcription.Provider = "local"
		}
	}

	str("GROQ_API_KEY", &c.Extraction.GroqAPIKey)
	str("OPENAI_API_KEY", &c.Extraction.OpenAIAPIKey)
	str("LLM_MODEL", &c.Extraction.Model)
	if err := boolean("ENABLE_LOCAL_MODE", &c.Extraction.LocalMode); err != nil {
		return err
	}
	if err := boolean("ENABLE_DATA_REDACTION", &c.Redaction.Enabled); err != nil {
		return err
	}

	str("JIRA_BASE_URL", &c.Jira.BaseURL)
	str("JIRA_EMAIL", &c.Jira.Email)
	str("JIRA_API_TOKEN", &c.Jira.APIToken)
	str("JIRA_PROJECT_KEY", &c.Jira.ProjectKey)
	str("TRELLO_API_KEY", &c.Trello.APIKey)
	str("TRELLO_API_TOKEN", &c.Trello.APIToken)
	str("TRELLO_BOARD_ID", &c.Trello.BoardID)
	str("TRELLO_LIST_ID", &c.Trello.ListID)
	return nil
}

func (c *Config) normalize() {
	c.Transcription.Provider = strings.ToLower(strings.TrimSpace(c.Transcription.Provider))
	c.Transcription.Task = strings.ToLower(strings.TrimSpace(c.Transcription.Task))
	// The hosted whisper API shares the OpenAI key unless one is set.
	if c.Transcription.APIKey == "" {
		c.Transcription.APIKey = c.Extraction.OpenAIAPIKey
	}
	for i, f := range c.Transcription.AllowedFormats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" && !strings.HasPrefix(f, ".") {
			f = "." + f
		}
		c.Transcription.AllowedFormats[i] = f
	}
	if c.Queue.Name == "" {
		c.Queue.Name = defaultQueueName
	}
	if c.Jira.IssueType == "" {
		c.Jira.IssueType = defaultJiraIssueType
	}
}
