package source

import (
	"errors"
	"fmt"
)

// ErrFetch marks a transient, provider-scoped data fetch failure,
// checkable with errors.Is. Fetch failures are retryable per item and
// never fatal to a batch run.
var ErrFetch = errors.New("data fetch failed")

// FetchError wraps a provider failure with its origin.
type FetchError struct {
	Provider string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s failed: %v", e.Provider, e.Err)
}

func (e *FetchError) Unwrap() error { return ErrFetch }
