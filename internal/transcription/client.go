package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultHTTPTimeout = 10 * time.Minute
	defaultRetryWindow = 45 * time.Second
)

// doWithRetry sends the request built by newReq, retrying transport failures
// and 5xx responses with exponential backoff. A non-nil error means no
// response was obtained; any HTTP status is returned to the caller.
func doWithRetry(ctx context.Context, hc *http.Client, window time.Duration, newReq func(context.Context) (*http.Request, error)) ([]byte, int, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = window

	var (
		body    []byte
		status  int
		lastErr error
	)
	op := func() error {
		req, err := newReq(ctx)
		if err != nil {
			lastErr = err
			return backoff.Permanent(err)
		}
		resp, err := hc.Do(req)
		if err != nil {
			status, lastErr = 0, err
			return err
		}
		defer resp.Body.Close()
		body, _ = io.ReadAll(resp.Body)
		status, lastErr = resp.StatusCode, nil
		if status >= 500 {
			return fmt.Errorf("server error: status=%d", status)
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	if status != 0 {
		return body, status, nil
	}
	if lastErr != nil {
		return nil, 0, lastErr
	}
	return nil, 0, err
}

func isRemoteRef(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// audioExt returns the lower-cased extension of a path or URL reference.
func audioExt(ref string) string {
	if isRemoteRef(ref) {
		if u, err := url.Parse(ref); err == nil {
			return strings.ToLower(path.Ext(u.Path))
		}
	}
	return strings.ToLower(filepath.Ext(ref))
}

// errAudioTooLarge rejects a download that exceeds the upload limit.
var errAudioTooLarge = errors.New("audio exceeds size limit")

// fetchAudio resolves ref to a local file. URLs are streamed into workDir
// and removed by cleanup. A positive maxBytes stops a download as soon as it
// grows past the limit.
func fetchAudio(ctx context.Context, hc *http.Client, window time.Duration, ref, workDir string, maxBytes int64) (string, func(), error) {
	noop := func() {}
	if ref == "" {
		return "", noop, newError(BadInput, "open", fmt.Errorf("empty audio reference"))
	}

	if !isRemoteRef(ref) {
		info, err := os.Stat(ref)
		if err != nil {
			return "", noop, newError(BadInput, "open", err)
		}
		if info.IsDir() {
			return "", noop, newError(BadInput, "open", fmt.Errorf("%s is a directory", ref))
		}
		return ref, noop, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = window

	var (
		name   string
		status int
	)
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := hc.Do(req)
		if err != nil {
			status = 0
			return err
		}
		defer resp.Body.Close()
		status = resp.StatusCode
		if status >= 500 {
			return fmt.Errorf("server error: status=%d", status)
		}
		if status >= 300 {
			return nil
		}
		if maxBytes > 0 && resp.ContentLength > maxBytes {
			return backoff.Permanent(fmt.Errorf("%w: %d bytes, limit is %d", errAudioTooLarge, resp.ContentLength, maxBytes))
		}
		saved, err := saveBody(resp.Body, workDir, audioExt(ref), maxBytes)
		if err != nil {
			if errors.Is(err, errAudioTooLarge) {
				return backoff.Permanent(err)
			}
			return err
		}
		name = saved
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	switch {
	case errors.Is(err, errAudioTooLarge):
		return "", noop, newError(BadInput, "download", err)
	case status >= 300:
		return "", noop, &Error{Category: BadInput, Op: "download", StatusCode: status, Err: fmt.Errorf("download failed")}
	case err != nil:
		return "", noop, newError(Unavailable, "download", err)
	}
	return name, func() { _ = os.Remove(name) }, nil
}

// saveBody copies at most maxBytes+1 bytes of r into a temp file, so an
// oversize body is detected without reading it whole.
func saveBody(r io.Reader, workDir, ext string, maxBytes int64) (string, error) {
	f, err := os.CreateTemp(workDir, "audio-*"+ext)
	if err != nil {
		return "", err
	}
	name := f.Name()

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && maxBytes > 0 && n > maxBytes {
		err = fmt.Errorf("%w: limit is %d bytes", errAudioTooLarge, maxBytes)
	}
	if err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
