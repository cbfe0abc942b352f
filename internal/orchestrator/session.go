package orchestrator

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/raidtools/lootcouncil/internal/config"
	"github.com/raidtools/lootcouncil/internal/domain/model"
	"github.com/raidtools/lootcouncil/internal/domain/normalize"
)

// ItemState is one step of the per-item state machine.
type ItemState string

// Item states. Completed, Failed and Skipped are terminal.
const (
	StatePending     ItemState = "pending"
	StateFetching    ItemState = "fetching"
	StateNormalizing ItemState = "normalizing"
	StateEvaluating  ItemState = "evaluating"
	StateParsing     ItemState = "parsing"
	StateCompleted   ItemState = "completed"
	StateFailed      ItemState = "failed"
	StateSkipped     ItemState = "skipped"
)

// ItemResult is the terminal record for one item of a run.
type ItemResult struct {
	Item     model.Item
	State    ItemState
	Decision *model.Decision // set when State is Completed
	Err      error           // set when State is Failed
}

// Progress is the externally observable state of a running session.
// CurrentItem and CurrentState track the item being worked through the
// pipeline steps; after the item lands they hold its terminal state.
type Progress struct {
	Completed    int
	Failed       int
	Skipped      int
	Total        int
	CurrentItem  string
	CurrentState ItemState
}

// Session is the state of one evaluation run, single item or zone. It
// snapshots the configuration at creation; later config edits never affect
// a running session. All mutation happens through the orchestrator.
type Session struct {
	ID     string
	Config config.Config

	// StartedAt is the session's logical start. Reference anchors every
	// lookback window for the whole run so a long batch stays deterministic
	// regardless of elapsed wall time.
	StartedAt time.Time
	Reference time.Time

	// Items in processing order: tier rank first, name second.
	Items []model.Item

	cancelled atomic.Bool

	mu           sync.Mutex
	results      []ItemResult
	completed    int
	failed       int
	skipped      int
	currentItem  string
	currentState ItemState
	warnings     []normalize.Warning
	warningKeys  map[string]struct{}
	allocations  map[string][]model.LootEntry
}

// NewSession snapshots the configuration and orders the items for
// processing. Higher-tier items come first so their decisions feed later
// items' in-session loot counts.
func NewSession(cfg *config.Config, items []model.Item) *Session {
	ordered := make([]model.Item, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := model.TierRank(ordered[i].Tier), model.TierRank(ordered[j].Tier)
		if ri != rj {
			return ri < rj
		}
		return ordered[i].Name < ordered[j].Name
	})

	start := time.Now()
	return &Session{
		ID:          uuid.NewString(),
		Config:      *cfg,
		StartedAt:   start,
		Reference:   cfg.ReferenceTime(start),
		Items:       ordered,
		warningKeys: make(map[string]struct{}),
		allocations: make(map[string][]model.LootEntry),
	}
}

// Cancel requests a graceful stop. The orchestrator honors it between
// items; the item being evaluated still finishes.
func (s *Session) Cancel() { s.cancelled.Store(true) }

// Cancelled reports whether a stop was requested.
func (s *Session) Cancelled() bool { return s.cancelled.Load() }

// Progress returns the current counters and the in-flight item's pipeline
// step.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Progress{
		Completed:    s.completed,
		Failed:       s.failed,
		Skipped:      s.skipped,
		Total:        len(s.Items),
		CurrentItem:  s.currentItem,
		CurrentState: s.currentState,
	}
}

// Results returns the terminal per-item records accumulated so far.
func (s *Session) Results() []ItemResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ItemResult, len(s.results))
	copy(out, s.results)
	return out
}

// Decisions returns the completed decisions in processing order, the flat
// sequence an export sink consumes.
func (s *Session) Decisions() []model.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Decision
	for _, r := range s.results {
		if r.Decision != nil {
			out = append(out, *r.Decision)
		}
	}
	return out
}

// Warnings returns the data-quality warnings gathered during the run.
func (s *Session) Warnings() []normalize.Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]normalize.Warning, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// setPhase records which pipeline step the in-flight item is in, so a
// Progress poll mid-item reports more than the terminal counters.
func (s *Session) setPhase(item model.Item, state ItemState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentItem = item.Name
	s.currentState = state
}

func (s *Session) recordResult(r ItemResult) Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	switch r.State {
	case StateCompleted:
		s.completed++
	case StateFailed:
		s.failed++
	case StateSkipped:
		s.skipped++
	}
	s.currentItem = r.Item.Name
	s.currentState = r.State
	return Progress{
		Completed:    s.completed,
		Failed:       s.failed,
		Skipped:      s.skipped,
		Total:        len(s.Items),
		CurrentItem:  r.Item.Name,
		CurrentState: r.State,
	}
}

// addWarnings keeps the first occurrence of each identity/reason pair.
// Repeated normalization across a batch would otherwise report the same
// collision once per item.
func (s *Session) addWarnings(warnings []normalize.Warning) []normalize.Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	var fresh []normalize.Warning
	for _, w := range warnings {
		key := w.Identity.Key() + "|" + w.Reason
		if _, seen := s.warningKeys[key]; seen {
			continue
		}
		s.warningKeys[key] = struct{}{}
		s.warnings = append(s.warnings, w)
		fresh = append(fresh, w)
	}
	return fresh
}

// allocate records an in-session award for the winner so later items see
// it in their recent-loot counts.
func (s *Session) allocate(winner model.Identity, entry model.LootEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := winner.Key()
	s.allocations[key] = append(s.allocations[key], entry)
}

// allocationsFor returns the candidate's in-session awards.
func (s *Session) allocationsFor(id model.Identity) []model.LootEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.allocations[id.Key()]
	out := make([]model.LootEntry, len(entries))
	copy(out, entries)
	return out
}
