package orchestrator

import (
	"errors"

	"github.com/raidtools/lootcouncil/internal/llm"
	"github.com/raidtools/lootcouncil/internal/prompt"
	"github.com/raidtools/lootcouncil/internal/source"
)

// ErrNoCandidates marks an item nobody eligible wants. The item fails, the
// batch continues.
var ErrNoCandidates = errors.New("no eligible candidates")

// errorKind classifies a per-item failure for metrics and reporting.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrNoCandidates):
		return "no_candidates"
	case errors.Is(err, source.ErrFetch):
		return "fetch"
	case errors.Is(err, prompt.ErrBudgetExceeded):
		return "budget"
	case errors.Is(err, prompt.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, llm.ErrProvider):
		return "provider"
	default:
		return "other"
	}
}
