package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	defaultRetryWindow = 45 * time.Second
	temperature        = 0.3
)

// ProviderConfig describes one OpenAI-compatible chat completions endpoint.
type ProviderConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	// JSONMode requests response_format=json_object. The local endpoint
	// does not honor it.
	JSONMode bool
}

// Client talks to a chat completions endpoint.
type Client struct {
	cfg    ProviderConfig
	hc     *http.Client
	window time.Duration
	log    *logrus.Entry
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithRetryWindow bounds the total time spent retrying one completion.
func WithRetryWindow(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.window = d
		}
	}
}

func NewClient(cfg ProviderConfig, log *logrus.Entry, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	c := &Client{
		cfg:    cfg,
		hc:     &http.Client{Timeout: defaultHTTPTimeout},
		window: defaultRetryWindow,
		log:    log.WithFields(logrus.Fields{"provider": cfg.Name, "model": cfg.Model}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return c.cfg.Name }

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete sends one system+user exchange and returns the assistant content.
// Client errors (4xx) are not retried.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
	}
	if c.cfg.JSONMode {
		payload.ResponseFormat = map[string]string{"type": "json_object"}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	var (
		content string
		lastErr error
	)
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			lastErr = err
			c.log.WithError(err).Warn("llm request failed")
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("llm http %d: %s", resp.StatusCode, strings.TrimSpace(truncate(body, 300)))
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(lastErr)
			}
			return lastErr
		}

		content = extractContentFromChoices(body)
		if strings.TrimSpace(content) == "" {
			lastErr = errors.New("llm returned empty content")
			return backoff.Permanent(lastErr)
		}
		lastErr = nil
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.window
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return "", fmt.Errorf("%s completion: %w", c.cfg.Name, lastErr)
	}
	return content, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
