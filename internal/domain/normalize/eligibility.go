package normalize

import (
	"time"

	"github.com/raidtools/lootcouncil/internal/domain/model"
)

// EligibleFor filters profiles down to the candidate pool for one item.
// Wishlist presence is the eligibility gate: a profile without the item on
// its wishlist never reaches the prompt. Entries already received on or
// before the reference date no longer qualify, and alts are dropped when
// alt evaluation is disabled.
func EligibleFor(profiles []*model.CandidateProfile, item model.Item, reference time.Time, includeAlts bool) []*model.CandidateProfile {
	var eligible []*model.CandidateProfile
	for _, p := range profiles {
		if p.Alt && !includeAlts {
			continue
		}
		entry, ok := p.WishlistEntryFor(item.ID)
		if !ok {
			continue
		}
		if receivedBy(entry, reference) {
			continue
		}
		eligible = append(eligible, p)
	}
	return eligible
}

func receivedBy(entry model.WishlistEntry, reference time.Time) bool {
	if entry.ReceivedAt != nil {
		return !entry.ReceivedAt.After(reference)
	}
	// A received flag without a date is trusted as already granted.
	return entry.Received
}
