package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/raidtools/lootcouncil/internal/domain/model"
)

// File-backed sources load point-in-time provider snapshots from JSON
// files. The live provider clients sit outside this module; an exported
// snapshot file is the handoff format between them and an evaluation run.

const dateLayout = "2006-01-02"

// FileGuildSource reads a TMB snapshot export.
type FileGuildSource struct {
	Path string
}

type fileWishlistEntry struct {
	ItemID     int64  `json:"item_id"`
	Rank       int    `json:"rank"`
	Mainspec   bool   `json:"mainspec"`
	Received   bool   `json:"received"`
	ReceivedAt string `json:"received_at,omitempty"`
}

type fileLootEntry struct {
	Date      string `json:"date"`
	ItemID    int64  `json:"item_id"`
	TierClass string `json:"tier_class,omitempty"`
	Offspec   bool   `json:"offspec,omitempty"`
}

type fileCharacter struct {
	Name      string `json:"name"`
	Realm     string `json:"realm"`
	Class     string `json:"class"`
	Spec      string `json:"spec"`
	Archetype string `json:"archetype"`
	Alt       bool   `json:"alt"`

	Wishlist []fileWishlistEntry `json:"wishlist"`
	// Received null or absent means the provider had no history section,
	// which downstream treats differently from an empty list.
	Received []fileLootEntry `json:"received"`

	PublicNote  string `json:"public_note,omitempty"`
	OfficerNote string `json:"officer_note,omitempty"`
}

type fileRaid struct {
	Date      string   `json:"date"`
	Name      string   `json:"name"`
	Attendees []string `json:"attendees"` // "Name-Realm"
}

type fileTMBSnapshot struct {
	Characters []fileCharacter   `json:"characters"`
	Raids      []fileRaid        `json:"raids"`
	ItemNotes  map[string]string `json:"item_notes,omitempty"`
}

func (s *FileGuildSource) FetchGuildData(_ context.Context, _ string) (model.TMBSnapshot, error) {
	var raw fileTMBSnapshot
	if err := readJSON(s.Path, &raw); err != nil {
		return model.TMBSnapshot{}, &FetchError{Provider: "tmb-file", Err: err}
	}

	out := model.TMBSnapshot{ItemNotes: make(map[int64]string, len(raw.ItemNotes))}
	for idStr, note := range raw.ItemNotes {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return model.TMBSnapshot{}, &FetchError{Provider: "tmb-file", Err: fmt.Errorf("item note key %q: %w", idStr, err)}
		}
		out.ItemNotes[id] = note
	}

	for _, ch := range raw.Characters {
		char := model.TMBCharacter{
			Name:        ch.Name,
			Realm:       ch.Realm,
			Class:       ch.Class,
			Spec:        ch.Spec,
			Archetype:   model.Archetype(ch.Archetype),
			Alt:         ch.Alt,
			PublicNote:  ch.PublicNote,
			OfficerNote: ch.OfficerNote,
		}
		for _, w := range ch.Wishlist {
			entry := model.WishlistEntry{
				ItemID:   w.ItemID,
				Rank:     w.Rank,
				Mainspec: w.Mainspec,
				Received: w.Received,
			}
			if w.ReceivedAt != "" {
				t, err := time.Parse(dateLayout, w.ReceivedAt)
				if err != nil {
					return model.TMBSnapshot{}, &FetchError{Provider: "tmb-file", Err: fmt.Errorf("%s wishlist item %d: %w", ch.Name, w.ItemID, err)}
				}
				entry.ReceivedAt = &t
			}
			char.Wishlist = append(char.Wishlist, entry)
		}
		if ch.Received != nil {
			char.Received = make([]model.LootEntry, 0, len(ch.Received))
			for _, l := range ch.Received {
				t, err := time.Parse(dateLayout, l.Date)
				if err != nil {
					return model.TMBSnapshot{}, &FetchError{Provider: "tmb-file", Err: fmt.Errorf("%s loot item %d: %w", ch.Name, l.ItemID, err)}
				}
				char.Received = append(char.Received, model.LootEntry{
					Date:      t,
					ItemID:    l.ItemID,
					TierClass: l.TierClass,
					Offspec:   l.Offspec,
				})
			}
		}
		out.Characters = append(out.Characters, char)
	}

	for _, raid := range raw.Raids {
		t, err := time.Parse(dateLayout, raid.Date)
		if err != nil {
			return model.TMBSnapshot{}, &FetchError{Provider: "tmb-file", Err: fmt.Errorf("raid %q: %w", raid.Name, err)}
		}
		night := model.RaidNight{Date: t, Name: raid.Name}
		for _, attendee := range raid.Attendees {
			night.Attendees = append(night.Attendees, splitIdentity(attendee))
		}
		out.Raids = append(out.Raids, night)
	}
	return out, nil
}

// FileParseSource reads a parse snapshot export keyed by "Name-Realm".
type FileParseSource struct {
	Path string
}

type fileParseScore struct {
	Best   *float64 `json:"best"`
	Median *float64 `json:"median"`
}

type fileParseSnapshot struct {
	Zone   string                    `json:"zone"`
	Metric string                    `json:"metric"`
	Scores map[string]fileParseScore `json:"scores"`
}

func (s *FileParseSource) FetchParses(_ context.Context, ids []model.Identity, zone string) (model.ParseSnapshot, error) {
	var raw fileParseSnapshot
	if err := readJSON(s.Path, &raw); err != nil {
		return model.ParseSnapshot{}, &FetchError{Provider: "parses-file", Err: err}
	}

	scores := make(map[string]model.ParseScore, len(raw.Scores))
	for name, sc := range raw.Scores {
		scores[splitIdentity(name).Key()] = model.ParseScore{Best: sc.Best, Median: sc.Median}
	}

	out := model.ParseSnapshot{
		Zone:   zone,
		Metric: raw.Metric,
		Scores: make(map[string]model.ParseScore, len(ids)),
	}
	for _, id := range ids {
		if sc, ok := scores[id.Key()]; ok {
			out.Scores[id.Key()] = sc
		}
	}
	return out, nil
}

// FileGearSource reads an equipped-gear export keyed by "Name-Realm".
type FileGearSource struct {
	Path string
}

type fileGearItem struct {
	ItemID    int64 `json:"item_id"`
	ItemLevel int   `json:"item_level"`
}

type fileGearSnapshot struct {
	Equipped map[string]map[string][]fileGearItem `json:"equipped"`
}

func (s *FileGearSource) FetchEquipped(_ context.Context, ids []model.Identity) (model.GearSnapshot, error) {
	var raw fileGearSnapshot
	if err := readJSON(s.Path, &raw); err != nil {
		return model.GearSnapshot{}, &FetchError{Provider: "gear-file", Err: err}
	}

	byKey := make(map[string]map[model.Slot][]model.GearItem, len(raw.Equipped))
	for name, slots := range raw.Equipped {
		equipped := make(map[model.Slot][]model.GearItem, len(slots))
		for slot, items := range slots {
			for _, g := range items {
				equipped[model.Slot(slot)] = append(equipped[model.Slot(slot)], model.GearItem{
					ItemID:    g.ItemID,
					ItemLevel: g.ItemLevel,
				})
			}
		}
		byKey[splitIdentity(name).Key()] = equipped
	}

	out := model.GearSnapshot{Equipped: make(map[string]map[model.Slot][]model.GearItem, len(ids))}
	for _, id := range ids {
		if equipped, ok := byKey[id.Key()]; ok {
			out.Equipped[id.Key()] = equipped
		}
	}
	return out, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// splitIdentity parses the "Name-Realm" display form. Realm names may
// themselves contain hyphens, so only the first one splits.
func splitIdentity(s string) model.Identity {
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			return model.Identity{Name: s[:i], Realm: s[i+1:]}
		}
	}
	return model.Identity{Name: s}
}
