package transcribe

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

// ErrCancelled marks a transcription aborted by the controller or
// superseded by a newer request.
var ErrCancelled = errors.New("transcription cancelled")

// ProviderError is a typed speech-to-text provider failure.
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
		return "transcription timed out"
	default:
		return fmt.Sprintf("transcription failed (status %d): %s", e.Status, e.Body)
	}
}

// Retryable reports whether the failure is worth another attempt.
func (e *ProviderError) Retryable() bool {
	return e.Kind == KindRateLimited || (e.Kind == KindOther && e.Status >= 500)
}

// KindOf extracts the error kind from any error chain.
func KindOf(err error) ErrorKind {
	var provider *ProviderError
	if errors.As(err, &provider) {
		return provider.Kind
	}
	return KindOther
}
