package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mapLookup(env map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.Redaction.Enabled || cfg.Transcription.Provider != "local" || cfg.Transcription.WhisperModel != "base" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Transcription.MaxUploadBytes != 100*1024*1024 || len(cfg.Transcription.AllowedFormats) != 5 {
		t.Fatalf("unexpected upload limits %+v", cfg.Transcription)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(mapLookup(map[string]string{
		"USE_LOCAL_WHISPER":     "false",
		"ENABLE_DATA_REDACTION": "FALSE",
		"ENABLE_LOCAL_MODE":     "true",
		"OPENAI_API_KEY":        " sk-test ",
		"LLM_MODEL":             "gpt-4o",
		"PORT":                  "9090",
		"DATABASE_PATH":         "/var/lib/meetings.db",
		"WHISPER_MODEL":         "",
		"JIRA_PROJECT_KEY":      "OPS",
	}))
	if err != nil {
		t.Fatal(err)
	}
	cfg.normalize()

	if cfg.Transcription.Provider != "remote" || cfg.Redaction.Enabled || !cfg.Extraction.LocalMode {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.Extraction.OpenAIAPIKey != "sk-test" || cfg.Transcription.APIKey != "sk-test" {
		t.Fatalf("openai key not shared: %+v", cfg.Transcription)
	}
	if cfg.Server.Port != 9090 || cfg.Database.Path != "/var/lib/meetings.db" || cfg.Jira.ProjectKey != "OPS" {
		t.Fatalf("unexpected values %+v", cfg)
	}
	if cfg.Transcription.WhisperModel != "base" {
		t.Fatalf("empty env value should not override: %q", cfg.Transcription.WhisperModel)
	}
}

func TestApplyEnvRejectsMalformedValues(t *testing.T) {
	for _, env := range []map[string]string{
		{"USE_LOCAL_WHISPER": "maybe"},
		{"ENABLE_DATA_REDACTION": "yes please"},
		{"PORT": "eighty"},
	} {
		cfg := Default()
		if err := cfg.applyEnv(mapLookup(env)); err == nil {
			t.Fatalf("expected error for %v", env)
		}
	}
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[database]
path = "/tmp/from-file.db"

[transcription]
provider = "REMOTE"
allowed_formats = ["mp3", ".WAV"]

[redaction]
enabled = false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("USE_LOCAL_WHISPER", "")
	t.Setenv("ENABLE_DATA_REDACTION", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Fatalf("env should win over file: %q", cfg.Database.Path)
	}
	if cfg.Transcription.Provider != "remote" || cfg.Redaction.Enabled {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if got := strings.Join(cfg.Transcription.AllowedFormats, ","); got != ".mp3,.wav" {
		t.Fatalf("formats not normalized: %s", got)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}

	unknown := filepath.Join(dir, "unknown.toml")
	_ = os.WriteFile(unknown, []byte("[database]\npth = \"x\"\n"), 0o600)
	if _, err := Load(unknown); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := map[string]func(*Config){
		"database path":  func(c *Config) { c.Database.Path = " " },
		"port":           func(c *Config) { c.Server.Port = 0 },
		"provider":       func(c *Config) { c.Transcription.Provider = "cloud" },
		"task":           func(c *Config) { c.Transcription.Task = "summarize" },
		"upload limit":   func(c *Config) { c.Transcription.MaxUploadBytes = 0 },
		"formats":        func(c *Config) { c.Transcription.AllowedFormats = nil },
		"concurrency":    func(c *Config) { c.Queue.Concurrency = 0 },
		"extract budget": func(c *Config) { c.Extraction.TimeoutSeconds = -1 },
		"stuck window":   func(c *Config) { c.Queue.StuckAfterSeconds = c.Transcription.TimeoutSeconds },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestWriteSampleLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatal(err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}
	for _, k := range []string{"USE_LOCAL_WHISPER", "ENABLE_DATA_REDACTION", "ENABLE_LOCAL_MODE", "DATABASE_PATH", "PORT"} {
		t.Setenv(k, "")
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if cfg.Extraction.LocalBaseURL != "http://localhost:11434/v1" || cfg.Queue.Concurrency != 4 {
		t.Fatalf("unexpected sample values %+v", cfg)
	}
}
