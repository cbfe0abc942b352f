package llm

import (
	"errors"
	"fmt"
)

// ErrProvider marks any failure of the model call itself, checkable with
// errors.Is.
var ErrProvider = errors.New("llm provider error")

// ProviderError wraps an HTTP- or API-level failure. Retryable failures
// (rate limits, server errors, transport errors, timeouts) count against
// the caller's retry budget; the rest fail the item immediately.
type ProviderError struct {
	Provider  string
	Status    int
	Message   string
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return ErrProvider }

// IsRetryable reports whether err is a provider failure worth retrying.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// statusRetryable classifies an HTTP status.
func statusRetryable(status int) bool {
	return status == 429 || status >= 500
}
