package transcription

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"meeting-actions-go/internal/types"
)

const (
	DefaultRemoteBaseURL = "https://api.openai.com/v1"
	DefaultRemoteModel   = "whisper-1"
	DefaultMaxUpload     = 100 << 20
)

var DefaultAllowedFormats = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac"}

// Remote calls the OpenAI audio API with a verbose_json response.
type Remote struct {
	apiKey   string
	baseURL  string
	model    string
	allowed  map[string]bool
	maxBytes int64
	workDir  string
	window   time.Duration
	hc       *http.Client
	log      *logrus.Entry
}

func NewRemote(cfg Config, log *logrus.Entry) (*Remote, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: remote transcription requires OPENAI_API_KEY", ErrProviderUnavailable)
	}
	r := &Remote{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		model:    cfg.RemoteModel,
		maxBytes: cfg.MaxUploadBytes,
		workDir:  cfg.WorkDir,
		window:   orDuration(cfg.RetryWindow, defaultRetryWindow),
		hc:       &http.Client{Timeout: orDuration(cfg.HTTPTimeout, defaultHTTPTimeout)},
		log:      log.WithField("provider", ProviderRemote),
	}
	if r.baseURL == "" {
		r.baseURL = DefaultRemoteBaseURL
	}
	if r.model == "" {
		r.model = DefaultRemoteModel
	}
	if r.maxBytes <= 0 {
		r.maxBytes = DefaultMaxUpload
	}
	formats := cfg.AllowedFormats
	if len(formats) == 0 {
		formats = DefaultAllowedFormats
	}
	r.allowed = make(map[string]bool, len(formats))
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" && !strings.HasPrefix(f, ".") {
			f = "." + f
		}
		r.allowed[f] = true
	}
	r.log.WithFields(logrus.Fields{"base_url": r.baseURL, "model": r.model}).Info("remote transcription ready")
	return r, nil
}

func (r *Remote) Name() string { return ProviderRemote }

func (r *Remote) Transcribe(ctx context.Context, audioRef string, opts Options) (types.TranscriptResult, error) {
	if ext := audioExt(audioRef); !r.allowed[ext] {
		return types.TranscriptResult{}, newError(BadInput, "validate", fmt.Errorf("unsupported audio format %q", ext))
	}

	src, cleanup, err := fetchAudio(ctx, r.hc, r.window, audioRef, r.workDir, r.maxBytes)
	if err != nil {
		return types.TranscriptResult{}, err
	}
	defer cleanup()

	info, err := os.Stat(src)
	if err != nil {
		return types.TranscriptResult{}, newError(BadInput, "validate", err)
	}
	if info.Size() > r.maxBytes {
		return types.TranscriptResult{}, newError(BadInput, "validate",
			fmt.Errorf("audio is %d bytes, limit is %d", info.Size(), r.maxBytes))
	}

	payload, contentType, err := r.buildForm(src, opts)
	if err != nil {
		return types.TranscriptResult{}, newError(BadInput, "encode", err)
	}

	endpoint := r.baseURL + "/audio/transcriptions"
	if opts.task() == TaskTranslate {
		endpoint = r.baseURL + "/audio/translations"
	}

	start := time.Now()
	body, status, err := doWithRetry(ctx, r.hc, r.window, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return types.TranscriptResult{}, newError(Unavailable, "request", err)
	}
	if status < 200 || status >= 300 {
		r.log.WithField("http_status", status).Warn("transcription API rejected request")
		return types.TranscriptResult{}, &Error{
			Category:   UpstreamError,
			Op:         "request",
			StatusCode: status,
			Err:        fmt.Errorf("%s", truncate(body, 512)),
		}
	}

	res, err := decodeWhisperJSON(body)
	if err != nil {
		return types.TranscriptResult{}, newError(UpstreamError, "decode", err)
	}
	r.log.WithFields(logrus.Fields{
		"segments":    len(res.Segments),
		"language":    res.Language,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("remote transcription finished")
	return res, nil
}

func (r *Remote) buildForm(src string, opts Options) ([]byte, string, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var b bytes.Buffer
	mw := multipart.NewWriter(&b)
	_ = mw.WriteField("model", r.model)
	_ = mw.WriteField("response_format", "verbose_json")
	if opts.Language != "" && opts.task() == TaskTranscribe {
		_ = mw.WriteField("language", opts.Language)
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(src))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return b.Bytes(), mw.FormDataContentType(), nil
}
