// Package metric computes derived per-candidate metrics from consolidated
// profiles. Every calculator is a pure function of profile, item context and
// window configuration: identical inputs always yield identical values, and
// missing source data yields an explicitly unavailable metric rather than a
// zero.
package metric

import (
	"math"
	"time"

	"github.com/raidtools/lootcouncil/internal/domain/model"
)

// Windows carries the calculator configuration for one run.
type Windows struct {
	// Reference anchors every lookback window. It is the session's logical
	// start time (or a pinned reference date), never a live clock read.
	Reference time.Time

	AttendanceLookbackDays int
	LootLookbackDays       int

	// ParseZone keys the profile's parse map.
	ParseZone string

	// Toggles. A disabled metric comes back in the disabled state and is
	// filtered before prompting; toggling is a filter, not a zero-fill.
	ShowAttendance       bool
	ShowRecentLoot       bool
	ShowWishlistPosition bool
	ShowParses           bool
	ShowIlvlUpgrade      bool
	ShowTierTokens       bool

	// TankPriority marks tank-archetype candidates when the tank-first
	// policy rule is active.
	TankPriority bool
}

// Compute derives the full metric set for one candidate against one item.
// SessionLoot carries items the candidate won earlier in the same session;
// they count toward recent loot alongside the profile's own history.
func Compute(profile *model.CandidateProfile, item model.Item, w Windows, sessionLoot []model.LootEntry) model.MetricSet {
	set := model.MetricSet{
		AttendancePct:     attendancePct(profile, w),
		RecentLootCount:   recentLootCount(profile, w, sessionLoot),
		WishlistPosition:  wishlistPosition(profile, item, w),
		IlvlUpgrade:       ilvlUpgrade(profile, item, w),
		TierTokenProgress: tierTokenProgress(profile, item, w),
		IsAlt:             profile.Alt,
		TankPriority:      w.TankPriority && profile.Archetype == model.ArchetypeTank,
	}
	set.BestParse, set.MedianParse = parses(profile, w)
	set.SessionAllocations = len(sessionLoot)

	if entry, ok := profile.WishlistEntryFor(item.ID); ok {
		set.Offspec = !entry.Mainspec
	}
	return set
}

func windowStart(reference time.Time, days int) time.Time {
	return reference.AddDate(0, 0, -days)
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// attendancePct is attended/total over the window, one decimal. Zero records
// in the window means the metric is unavailable, never 0%.
func attendancePct(p *model.CandidateProfile, w Windows) model.MetricValue {
	if !w.ShowAttendance {
		return model.DisabledMetric()
	}
	start := windowStart(w.Reference, w.AttendanceLookbackDays)

	var total, attended int
	for _, rec := range p.Attendance {
		if !inWindow(rec.Date, start, w.Reference) {
			continue
		}
		total++
		if rec.Attended {
			attended++
		}
	}
	if total == 0 {
		return model.UnavailableMetric()
	}
	pct := float64(attended) / float64(total) * 100
	return model.AvailableMetric(math.Round(pct*10) / 10)
}

// recentLootCount counts mainspec loot in the window. Zero is a valid result
// when the history exists; the metric is unavailable only when the source
// carried no history section for the candidate at all.
func recentLootCount(p *model.CandidateProfile, w Windows, sessionLoot []model.LootEntry) model.MetricValue {
	if !w.ShowRecentLoot {
		return model.DisabledMetric()
	}
	if p.LootHistory == nil && len(sessionLoot) == 0 {
		return model.UnavailableMetric()
	}
	start := windowStart(w.Reference, w.LootLookbackDays)

	count := 0
	for _, entry := range p.LootHistory {
		if entry.Offspec {
			continue
		}
		if inWindow(entry.Date, start, w.Reference) {
			count++
		}
	}
	for _, entry := range sessionLoot {
		if entry.Offspec {
			continue
		}
		if inWindow(entry.Date, start, w.Reference) {
			count++
		}
	}
	return model.AvailableMetric(float64(count))
}

// wishlistPosition looks up the item's 1-based rank. Candidates without the
// item on their wishlist are excluded upstream; this keeps the check anyway.
func wishlistPosition(p *model.CandidateProfile, item model.Item, w Windows) model.MetricValue {
	if !w.ShowWishlistPosition {
		return model.DisabledMetric()
	}
	entry, ok := p.WishlistEntryFor(item.ID)
	if !ok {
		return model.UnavailableMetric()
	}
	return model.AvailableMetric(float64(entry.Rank))
}

// ilvlUpgrade is the item's level minus the equipped level in the target
// slot. Negative values are kept: a downgrade is a fact the policy may want.
// For dual slots the lowest equipped level is compared, the most generous
// upgrade reading.
func ilvlUpgrade(p *model.CandidateProfile, item model.Item, w Windows) model.MetricValue {
	if !w.ShowIlvlUpgrade {
		return model.DisabledMetric()
	}
	if !p.GearAvailable || item.ItemLevel <= 0 || item.Slot == "" {
		return model.UnavailableMetric()
	}
	equipped, ok := p.Gear[item.Slot]
	if !ok || len(equipped) == 0 {
		return model.UnavailableMetric()
	}
	lowest := equipped[0].ItemLevel
	for _, g := range equipped[1:] {
		if g.ItemLevel < lowest {
			lowest = g.ItemLevel
		}
	}
	return model.AvailableMetric(float64(item.ItemLevel - lowest))
}

// tierTokenProgress counts distinct tier-set pieces already owned via loot
// history matching the token's tier class, relative to the set size.
func tierTokenProgress(p *model.CandidateProfile, item model.Item, w Windows) model.MetricValue {
	if !w.ShowTierTokens {
		return model.DisabledMetric()
	}
	if item.TierClass == "" || item.TierSetSize <= 0 || p.LootHistory == nil {
		return model.UnavailableMetric()
	}
	owned := map[int64]struct{}{}
	for _, entry := range p.LootHistory {
		if entry.TierClass == item.TierClass {
			owned[entry.ItemID] = struct{}{}
		}
	}
	return model.AvailableMetric(float64(len(owned)))
}

// parses returns the best and median percentiles for the configured zone.
func parses(p *model.CandidateProfile, w Windows) (best, median model.MetricValue) {
	if !w.ShowParses {
		return model.DisabledMetric(), model.DisabledMetric()
	}
	score, ok := p.Parses[w.ParseZone]
	if !ok {
		return model.UnavailableMetric(), model.UnavailableMetric()
	}
	best = model.UnavailableMetric()
	median = model.UnavailableMetric()
	if score.Best != nil {
		best = model.AvailableMetric(math.Round(*score.Best*10) / 10)
	}
	if score.Median != nil {
		median = model.AvailableMetric(math.Round(*score.Median*10) / 10)
	}
	return best, median
}
