// Package normalize joins the three provider snapshots into consolidated
// candidate profiles. The join key is the case-insensitive (name, realm)
// identity. TMB is the eligibility source of truth: characters absent from
// it never become profiles. Missing performance or equipment data narrows a
// profile, it never excludes one.
package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/raidtools/lootcouncil/internal/domain/model"
)

// Warning is a non-fatal data-quality finding. The affected candidate is
// skipped rather than silently merged; warnings surface as notices, they
// never abort a run.
type Warning struct {
	Identity model.Identity
	Reason   string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Identity, w.Reason)
}

// Normalize merges the snapshots into profiles, sorted by identity key so
// output order is stable regardless of snapshot ordering. Downstream
// consumers must not attach meaning to the order beyond its stability.
func Normalize(tmb model.TMBSnapshot, parses model.ParseSnapshot, gear model.GearSnapshot) ([]*model.CandidateProfile, []Warning) {
	var warnings []Warning

	// Detect join-key collisions inside the TMB snapshot first. Two
	// characters collapsing onto one key cannot be attributed reliably, so
	// both are skipped.
	seen := map[string]int{}
	for _, ch := range tmb.Characters {
		seen[identityOf(ch).Key()]++
	}

	profiles := make([]*model.CandidateProfile, 0, len(tmb.Characters))
	for _, ch := range tmb.Characters {
		id := identityOf(ch)
		key := id.Key()
		if seen[key] > 1 {
			warnings = append(warnings, Warning{
				Identity: id,
				Reason:   "ambiguous identity: multiple characters share this name and realm",
			})
			continue
		}

		p := &model.CandidateProfile{
			Identity:    id,
			Class:       ch.Class,
			Spec:        ch.Spec,
			Archetype:   ch.Archetype,
			Alt:         ch.Alt,
			Attendance:  attendanceFor(id, tmb.Raids),
			LootHistory: ch.Received,
			Wishlist:    ch.Wishlist,
		}

		if equipped, ok := gear.Equipped[key]; ok {
			p.Gear = equipped
			p.GearAvailable = true
		}

		if score, ok := parses.Scores[key]; ok {
			p.Parses = map[string]model.ParseScore{parses.Zone: score}
			p.ParseMetric = parses.Metric
		}

		if note := strings.TrimSpace(ch.PublicNote); note != "" {
			p.Notes = append(p.Notes, model.Note{Text: note})
		}
		if note := strings.TrimSpace(ch.OfficerNote); note != "" {
			p.Notes = append(p.Notes, model.Note{Text: note, OfficerOnly: true})
		}

		profiles = append(profiles, p)
	}

	// Skipped duplicates produce one warning per occurrence; collapse to
	// one per identity.
	warnings = dedupeWarnings(warnings)

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Identity.Key() < profiles[j].Identity.Key()
	})
	return profiles, warnings
}

func identityOf(ch model.TMBCharacter) model.Identity {
	return model.Identity{Name: ch.Name, Realm: ch.Realm}
}

// attendanceFor converts the raid calendar into a per-character record: one
// entry per raid night, attended when the character was credited.
func attendanceFor(id model.Identity, raids []model.RaidNight) []model.AttendanceRecord {
	if len(raids) == 0 {
		return nil
	}
	records := make([]model.AttendanceRecord, 0, len(raids))
	for _, raid := range raids {
		attended := false
		for _, attendee := range raid.Attendees {
			if attendee.Equal(id) {
				attended = true
				break
			}
		}
		records = append(records, model.AttendanceRecord{Date: raid.Date, Attended: attended})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records
}

func dedupeWarnings(warnings []Warning) []Warning {
	seen := map[string]struct{}{}
	out := warnings[:0]
	for _, w := range warnings {
		key := w.Identity.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, w)
	}
	return out
}
