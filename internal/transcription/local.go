package transcription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"meeting-actions-go/internal/types"
)

const (
	DefaultWhisperBinary = "whisper"
	DefaultWhisperModel  = "base"
)

// CommandRunner executes an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Local runs the openai-whisper CLI and reads the JSON file it writes.
type Local struct {
	binary  string
	model   string
	workDir string
	window  time.Duration
	hc      *http.Client
	run     CommandRunner
	log     *logrus.Entry
}

func NewLocal(cfg Config, log *logrus.Entry) (*Local, error) {
	bin := cfg.WhisperBinary
	if bin == "" {
		bin = DefaultWhisperBinary
	}
	resolved, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: whisper binary %q: %v", ErrProviderUnavailable, bin, err)
	}
	model := cfg.WhisperModel
	if model == "" {
		model = DefaultWhisperModel
	}
	l := &Local{
		binary:  resolved,
		model:   model,
		workDir: cfg.WorkDir,
		window:  orDuration(cfg.RetryWindow, defaultRetryWindow),
		hc:      &http.Client{Timeout: orDuration(cfg.HTTPTimeout, defaultHTTPTimeout)},
		run:     execRunner,
		log:     log.WithField("provider", ProviderLocal),
	}
	l.log.WithFields(logrus.Fields{"binary": resolved, "model": model}).Info("local whisper ready")
	return l, nil
}

// WithCommandRunner replaces the process runner (for testing).
func (l *Local) WithCommandRunner(r CommandRunner) {
	l.run = r
}

func (l *Local) Name() string { return ProviderLocal }

func (l *Local) Transcribe(ctx context.Context, audioRef string, opts Options) (types.TranscriptResult, error) {
	src, cleanup, err := fetchAudio(ctx, l.hc, l.window, audioRef, l.workDir, 0)
	if err != nil {
		return types.TranscriptResult{}, err
	}
	defer cleanup()

	outDir, err := os.MkdirTemp(l.workDir, "whisper-*")
	if err != nil {
		return types.TranscriptResult{}, newError(Unavailable, "workdir", err)
	}
	defer os.RemoveAll(outDir)

	start := time.Now()
	if _, err := l.run(ctx, l.binary, l.buildArgs(src, outDir, opts)...); err != nil {
		return types.TranscriptResult{}, classifyRunError(ctx, err)
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	raw, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return types.TranscriptResult{}, newError(Unavailable, "read output", err)
	}
	res, err := decodeWhisperJSON(raw)
	if err != nil {
		return types.TranscriptResult{}, newError(Unavailable, "read output", err)
	}

	l.log.WithFields(logrus.Fields{
		"segments":    len(res.Segments),
		"language":    res.Language,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("local transcription finished")
	return res, nil
}

func (l *Local) buildArgs(src, outDir string, opts Options) []string {
	args := []string{
		src,
		"--model", l.model,
		"--task", string(opts.task()),
		"--output_format", "json",
		"--output_dir", outDir,
		"--verbose", "False",
	}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	return args
}

// classifyRunError maps a failed whisper run onto the error taxonomy. A
// deadline or a vanished binary means the engine was not usable; anything
// else is the CLI rejecting the audio.
func classifyRunError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return newError(Unavailable, "run", ctx.Err())
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return newError(Unavailable, "run", err)
	default:
		return newError(BadInput, "run", err)
	}
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, lastLine(out))
	}
	return out, nil
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func orDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}
