package tracker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultRetryWindow = 30 * time.Second
)

type Option func(*httpDoer)

func WithHTTPClient(hc *http.Client) Option {
	return func(d *httpDoer) {
		if hc != nil {
			d.hc = hc
		}
	}
}

// WithRetryWindow bounds the total time spent retrying one call.
func WithRetryWindow(w time.Duration) Option {
	return func(d *httpDoer) {
		if w > 0 {
			d.window = w
		}
	}
}

type httpDoer struct {
	hc     *http.Client
	window time.Duration
}

func newDoer(opts []Option) httpDoer {
	d := httpDoer{hc: &http.Client{Timeout: defaultHTTPTimeout}, window: defaultRetryWindow}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// do sends one request, retrying transport errors, 429 and 5xx. Other
// non-2xx statuses fail immediately.
//
// Issue and card creation are POSTs without an idempotency key. If the
// tracker created the item but the response was lost (timeout, 5xx after
// commit), the retry creates a second one, so pushes are at least once.
func (d httpDoer) do(ctx context.Context, method, url string, body []byte, decorate func(*http.Request)) ([]byte, error) {
	var (
		out     []byte
		lastErr error
	)
	op := func() error {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rdr)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if decorate != nil {
			decorate(req)
		}

		resp, err := d.hc.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(truncate(data, 300)))
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(lastErr)
			}
			return lastErr
		}
		out = data
		lastErr = nil
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = d.window
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, lastErr
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
