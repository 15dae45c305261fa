package generator

import (
	"errors"
	"fmt"
)

// maxErrorBody caps how much of an upstream error body is kept.
const maxErrorBody = 512

// ErrTimeout means the completion call did not finish within the deadline.
var ErrTimeout = errors.New("generator: completion timed out")

// ErrEmptyCompletion is a 2xx reply that carried no text.
var ErrEmptyCompletion = errors.New("generator: completion was empty")

// UpstreamError is a non-2xx reply from the completion API.
type UpstreamError struct {
	Status int
	Body   string // truncated to maxErrorBody bytes
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generator: completion API returned %d: %s", e.Status, e.Body)
}

func newUpstreamError(status int, body []byte) *UpstreamError {
	return &UpstreamError{Status: status, Body: truncate(string(body), maxErrorBody)}
}

// ParseError is a reply that is not a usable report. Raw keeps the full
// original text so it can be stored for debugging.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("generator: could not parse report: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "…"
}
