package model

import "time"

// The raw snapshot types mirror what the external data providers return.
// They are point-in-time: the normalizer joins them once per run and the
// resulting profiles never observe later provider state.

// TMBCharacter is one character record from the wishlist/attendance/loot
// provider. TMB is the eligibility source of truth: characters absent from
// the TMB snapshot are never candidates.
type TMBCharacter struct {
	Name      string
	Realm     string
	Class     string
	Spec      string
	Archetype Archetype
	Alt       bool

	Wishlist []WishlistEntry
	// Received is the character's loot history. A nil slice means the
	// provider returned no history section for this character, which is
	// distinct from an empty history.
	Received []LootEntry

	PublicNote  string
	OfficerNote string
}

// RaidNight is one raid event with the identities credited for attending.
type RaidNight struct {
	Date      time.Time
	Name      string
	Attendees []Identity
}

// TMBSnapshot is the full raw payload from the TMB provider.
type TMBSnapshot struct {
	Characters []TMBCharacter
	Raids      []RaidNight
	// ItemNotes maps item ID to an operator-authored priority note.
	ItemNotes map[int64]string
}

// ParseSnapshot holds performance percentiles for one zone, keyed by
// Identity.Key. Characters without logs are simply absent.
type ParseSnapshot struct {
	Zone   string
	Metric string // "dps" or "hps", per the archetype the fetch used
	Scores map[string]ParseScore
}

// GearSnapshot holds equipped gear keyed by Identity.Key. The provider may
// be disabled entirely, in which case the snapshot is empty and every
// profile runs without gear data.
type GearSnapshot struct {
	Equipped map[string]map[Slot][]GearItem
}
