package prompt

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, checkable with errors.Is.
var (
	// ErrBudgetExceeded marks a prompt over the provider's character
	// budget. It is fatal to the item, not the run: dropping candidates to
	// fit would corrupt the fairness of the decision.
	ErrBudgetExceeded = errors.New("prompt budget exceeded")

	// ErrMalformedResponse marks a model reply that fails validation.
	ErrMalformedResponse = errors.New("malformed model response")
)

// BudgetError reports which part of an oversized prompt is largest so the
// operator can see what to trim (candidate pool, policy, notes).
type BudgetError struct {
	Limit          int
	Size           int
	LargestSection string
	LargestSize    int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("prompt budget exceeded: %d chars over the %d limit, largest section %q (%d chars)",
		e.Size, e.Limit, e.LargestSection, e.LargestSize)
}

func (e *BudgetError) Unwrap() error { return ErrBudgetExceeded }

// MalformedResponseError carries the validation failure reason. The
// orchestrator retries once with a corrective instruction before recording
// the item as failed.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %s", e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return ErrMalformedResponse }
