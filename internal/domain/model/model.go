// Package model contains the domain types passed between pipeline stages.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Archetype is a character's raid role.
type Archetype string

// Known archetypes.
const (
	ArchetypeTank   Archetype = "Tank"
	ArchetypeHealer Archetype = "Healer"
	ArchetypeDPS    Archetype = "DPS"
)

// Slot is a normalized equipment slot name.
type Slot string

// Equipment slots the advisor understands. Weapon and jewelry slots that can
// hold two items at once (finger, trinket, one-hand) are represented by a
// single Slot whose gear list may carry up to two entries.
const (
	SlotHead     Slot = "head"
	SlotNeck     Slot = "neck"
	SlotShoulder Slot = "shoulder"
	SlotBack     Slot = "back"
	SlotChest    Slot = "chest"
	SlotWrist    Slot = "wrist"
	SlotHands    Slot = "hands"
	SlotWaist    Slot = "waist"
	SlotLegs     Slot = "legs"
	SlotFeet     Slot = "feet"
	SlotFinger   Slot = "finger"
	SlotTrinket  Slot = "trinket"
	SlotMainHand Slot = "main_hand"
	SlotOffHand  Slot = "off_hand"
	SlotRanged   Slot = "ranged"
)

// Identity uniquely names a character. Name plus realm is the join key
// across all external sources.
type Identity struct {
	Name  string
	Realm string
}

// Key returns the case-insensitive join key for this identity.
func (id Identity) Key() string {
	return strings.ToLower(id.Name) + "@" + strings.ToLower(id.Realm)
}

// String renders the identity the way it appears in prompts and decisions.
func (id Identity) String() string {
	if id.Realm == "" {
		return id.Name
	}
	return fmt.Sprintf("%s-%s", id.Name, id.Realm)
}

// Equal reports whether two identities refer to the same character.
func (id Identity) Equal(other Identity) bool {
	return id.Key() == other.Key()
}

// AttendanceRecord is one raid night for one character.
type AttendanceRecord struct {
	Date     time.Time
	Attended bool
}

// LootEntry is one received item in a character's loot history.
type LootEntry struct {
	Date      time.Time
	ItemID    int64
	TierClass string // tier-set class key, empty for non-set items
	Offspec   bool
}

// WishlistEntry is one item on a character's wishlist. Rank is 1-based and
// unique per candidate; gaps are allowed.
type WishlistEntry struct {
	ItemID     int64
	Rank       int
	Mainspec   bool
	Received   bool
	ReceivedAt *time.Time
}

// GearItem is one equipped item.
type GearItem struct {
	ItemID    int64
	ItemLevel int
}

// ParseScore holds a character's performance percentiles for one zone.
// Best or Median may individually be absent.
type ParseScore struct {
	Best   *float64
	Median *float64
}

// Note is officer- or operator-authored free text about a character.
type Note struct {
	Text        string
	OfficerOnly bool
}

// CandidateProfile is one character's consolidated state for evaluation.
// It is constructed fresh per run from point-in-time snapshots and is
// immutable after construction.
type CandidateProfile struct {
	Identity  Identity
	Class     string
	Spec      string
	Archetype Archetype
	Alt       bool

	Attendance  []AttendanceRecord
	LootHistory []LootEntry // nil means the source carried no history at all
	Wishlist    []WishlistEntry

	// Gear maps slot to equipped items (two entries for dual slots).
	// GearAvailable is false when the equipment source had no data for
	// this character; Gear is nil in that case.
	Gear          map[Slot][]GearItem
	GearAvailable bool

	// Parses maps a zone key to percentile scores; a missing key means no
	// logs for that zone. ParseMetric records which metric the scores
	// measure (hps for healers, dps otherwise).
	Parses      map[string]ParseScore
	ParseMetric string

	Notes []Note
}

// WishlistEntryFor returns the wishlist entry for the given item, if any.
func (p *CandidateProfile) WishlistEntryFor(itemID int64) (WishlistEntry, bool) {
	for _, w := range p.Wishlist {
		if w.ItemID == itemID {
			return w, true
		}
	}
	return WishlistEntry{}, false
}

// Item identifies the item under evaluation.
type Item struct {
	ID        int64
	Name      string
	Slot      Slot
	ItemLevel int // 0 means unknown

	// Tier orders batch processing: lexically smaller tiers are evaluated
	// first ("S" < "A" is handled by TierRank, not string order).
	Tier string

	// TierClass and TierSetSize are set for tier tokens: the set key the
	// token contributes to and the full size of that set.
	TierClass   string
	TierSetSize int

	// PriorityNote is an operator-authored distribution guideline.
	PriorityNote string
}

// TierRank orders item tiers for batch processing: S before A before B and
// so on. Unknown tiers sort last, after every known tier.
func TierRank(tier string) int {
	switch strings.ToUpper(strings.TrimSpace(tier)) {
	case "S":
		return 0
	case "A":
		return 1
	case "B":
		return 2
	case "C":
		return 3
	case "D":
		return 4
	}
	return 5
}

// RankedCandidate is one entry of a decision's ranked order.
type RankedCandidate struct {
	Rank      int
	Identity  Identity
	Reasoning string
}

// Decision is the immutable outcome of one item evaluation.
type Decision struct {
	ID        string
	Item      Item
	Winner    Identity
	Ranked    []RankedCandidate
	CreatedAt time.Time

	// Metrics retains the exact per-candidate metric snapshot the prompt
	// was built from, keyed by Identity.Key, for audit and export.
	Metrics map[string]MetricSet
}

// WinnerReasoning returns the reasoning recorded for the winning candidate.
func (d Decision) WinnerReasoning() string {
	for _, r := range d.Ranked {
		if r.Identity.Equal(d.Winner) {
			return r.Reasoning
		}
	}
	return ""
}
