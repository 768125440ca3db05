package config

const (
	defaultPort           = 8080
	defaultUploadDir      = "./uploads"
	defaultDatabasePath   = "./data/meetings.db"
	defaultRedisAddr      = "127.0.0.1:6379"
	defaultQueueName      = "default"
	defaultConcurrency    = 4
	defaultStuckAfterSecs = 3600
	defaultWhisperModel   = "base"
	defaultMaxUploadBytes = 100 * 1024 * 1024
	defaultTranscribeSecs = 900
	defaultExtractSecs    = 120
	defaultJiraIssueType  = "Task"
)

var defaultAllowedFormats = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac"}

// Default returns the configuration used when neither file nor environment
// set a value.
func Default() Config {
	return Config{
		Server:   Server{Port: defaultPort, UploadDir: defaultUploadDir},
		Database: Database{Path: defaultDatabasePath},
		Queue: Queue{
			RedisAddr:   defaultRedisAddr,
			Name:        defaultQueueName,
			Concurrency:       defaultConcurrency,
			StuckAfterSeconds: defaultStuckAfterSecs,
		},
		Transcription: Transcription{
			Provider:       "local",
			WhisperModel:   defaultWhisperModel,
			Task:           "transcribe",
			AllowedFormats: append([]string(nil), defaultAllowedFormats...),
			MaxUploadBytes: defaultMaxUploadBytes,
			TimeoutSeconds: defaultTranscribeSecs,
		},
		Extraction: Extraction{
			Enabled:        true,
			TimeoutSeconds: defaultExtractSecs,
		},
		Redaction: Redaction{Enabled: true},
		Jira:      Jira{IssueType: defaultJiraIssueType},
	}
}
