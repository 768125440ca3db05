package transcription

import (
	"errors"
	"fmt"
	"strings"
)

// Category classifies why a transcription failed.
type Category string

const (
	Unavailable   Category = "unavailable"
	BadInput      Category = "bad_input"
	UpstreamError Category = "upstream_error"
)

// ErrProviderUnavailable is returned at construction time when the selected
// provider has no credential or no local engine to run.
var ErrProviderUnavailable = errors.New("transcription provider unavailable")

// Category sentinels for errors.Is checks.
var (
	ErrUnavailable = &Error{Category: Unavailable}
	ErrBadInput    = &Error{Category: BadInput}
	ErrUpstream    = &Error{Category: UpstreamError}
)

// Error is the only error type returned by Provider.Transcribe.
type Error struct {
	Category   Category
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("transcription")
	if e.Op != "" {
		b.WriteString(" " + e.Op)
	}
	b.WriteString(": " + string(e.Category))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the category sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil || t.StatusCode != 0 {
		return false
	}
	return t.Category == e.Category
}

// CategoryOf extracts the failure category from err.
func CategoryOf(err error) (Category, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Category, true
	}
	return "", false
}

func newError(cat Category, op string, err error) *Error {
	return &Error{Category: cat, Op: op, Err: err}
}
