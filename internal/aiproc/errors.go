// Package aiproc rewrites command utterances through a remote LLM.
package aiproc

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures for notification mapping.
type ErrorKind string

const (
	KindInvalidKey  ErrorKind = "invalid_key"
	KindRateLimited ErrorKind = "rate_limited"
	KindTimeout     ErrorKind = "timeout"
	KindOther       ErrorKind = "other"
)

// ErrCancelled signals a controller-initiated abort; the pipeline falls
// through to plain insertion without notifying.
var ErrCancelled = errors.New("ai processing cancelled")

// ProviderError is a typed LLM provider failure.
type ProviderError struct {
	Kind   ErrorKind
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	switch e.Kind {
	case KindInvalidKey:
		return "invalid API key"
	case KindRateLimited:
		return "rate limit exceeded"
	case KindTimeout:
		return "AI processing timed out"
	default:
		return fmt.Sprintf("AI processing failed (status %d): %s", e.Status, e.Body)
	}
}

// KindOf extracts the error kind from any error chain.
func KindOf(err error) ErrorKind {
	var provider *ProviderError
	if errors.As(err, &provider) {
		return provider.Kind
	}
	return KindOther
}
