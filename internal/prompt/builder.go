// Package prompt serializes an item, its candidate pool and the guild
// policy into a bounded textual prompt, and validates the model's reply
// back into a structured decision.
package prompt

import (
	"fmt"
	"strings"

	"github.com/raidtools/lootcouncil/internal/domain/model"
)

// BuildOptions configures prompt rendering for one run.
type BuildOptions struct {
	// MaxChars is the provider's character budget for the user prompt.
	MaxChars int

	// SessionMode includes session allocation counts (zone runs).
	SessionMode bool

	// ShowAltStatus renders [ALT] markers and the alt context line.
	ShowAltStatus bool

	// ShowNotes renders officer notes.
	ShowNotes bool

	// LootLookbackDays and ParseZoneLabel label the corresponding metric
	// lines.
	LootLookbackDays int
	ParseZoneLabel   string
}

// Prompt is the serialized request for the model, with the identity strings
// the reply must use.
type Prompt struct {
	System     string
	User       string
	Candidates []model.Identity
}

// Build renders the prompt document. Candidate order follows the given
// slice; the caller controls it. If the serialized document exceeds the
// budget the build fails with a BudgetError naming the largest section.
// Candidates are never silently dropped to fit.
func Build(item model.Item, candidates []*model.CandidateProfile, metrics map[string]model.MetricSet, policyText string, opts BuildOptions) (*Prompt, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates to evaluate for %s", item.Name)
	}

	var flags systemFlags
	sections := make(map[string]string, len(candidates)+3)

	header := buildHeader(item)
	sections["item header"] = header
	flags.guildPriorityNote = item.PriorityNote != ""

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n## Candidates\n\n")

	identities := make([]model.Identity, 0, len(candidates))
	for i, cand := range candidates {
		set, ok := metrics[cand.Identity.Key()]
		if !ok {
			return nil, fmt.Errorf("no metric set computed for %s", cand.Identity)
		}
		section := buildCandidate(i+1, cand, set, item, opts, &flags)
		sections[cand.Identity.String()] = section
		sb.WriteString(section)
		sb.WriteString("\n")
		identities = append(identities, cand.Identity)
	}

	policySection := "## Guild Loot Policy Rules\n" + policyText + "\n"
	sections["policy"] = policySection
	sb.WriteString(policySection)

	task := buildTask(len(candidates))
	sections["task"] = task
	sb.WriteString(task)

	user := sb.String()
	if opts.MaxChars > 0 && len(user) > opts.MaxChars {
		name, size := largestSection(sections)
		return nil, &BudgetError{
			Limit:          opts.MaxChars,
			Size:           len(user),
			LargestSection: name,
			LargestSize:    size,
		}
	}

	return &Prompt{
		System:     systemPrompt(flags),
		User:       user,
		Candidates: identities,
	}, nil
}

func buildHeader(item model.Item) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Item: %s\n", item.Name)
	if item.Slot != "" {
		fmt.Fprintf(&sb, "Slot: %s\n", item.Slot)
	}
	if item.ItemLevel > 0 {
		fmt.Fprintf(&sb, "Item Level: %d\n", item.ItemLevel)
	}
	if item.PriorityNote != "" {
		fmt.Fprintf(&sb, "Guild Priority Note: %s\n", item.PriorityNote)
	}
	return sb.String()
}

func buildCandidate(idx int, cand *model.CandidateProfile, set model.MetricSet, item model.Item, opts BuildOptions, flags *systemFlags) string {
	var sb strings.Builder

	name := cand.Identity.String()
	if opts.ShowAltStatus && set.IsAlt {
		name += " [ALT]"
	}
	if set.Offspec {
		name += " [OFFSPEC]"
	}
	fmt.Fprintf(&sb, "### %d. %s\n", idx, name)
	fmt.Fprintf(&sb, "- Class/Spec: %s/%s\n", cand.Class, cand.Spec)
	fmt.Fprintf(&sb, "- Role: %s\n", roleLabel(cand.Archetype))
	if set.Offspec {
		sb.WriteString("- Item Priority: Offspec (for alternate role)\n")
	} else {
		sb.WriteString("- Item Priority: Mainspec\n")
	}

	if !set.WishlistPosition.Disabled() {
		if v, ok := set.WishlistPosition.Value(); ok {
			fmt.Fprintf(&sb, "- Wishlist Position: #%d\n", int(v))
		} else {
			sb.WriteString("- Wishlist Position: unknown\n")
		}
		flags.wishlistPosition = true
	}
	if !set.AttendancePct.Disabled() {
		if v, ok := set.AttendancePct.Value(); ok {
			fmt.Fprintf(&sb, "- Attendance: %.1f%%\n", v)
		} else {
			sb.WriteString("- Attendance: unknown (no raids in window)\n")
		}
	}
	if !set.RecentLootCount.Disabled() {
		if v, ok := set.RecentLootCount.Value(); ok {
			fmt.Fprintf(&sb, "- Items Won (Last %d Days): %d\n", opts.LootLookbackDays, int(v))
		} else {
			fmt.Fprintf(&sb, "- Items Won (Last %d Days): unknown (no loot history)\n", opts.LootLookbackDays)
		}
	}
	if opts.SessionMode && set.SessionAllocations > 0 {
		fmt.Fprintf(&sb, "- Items assigned this session: %d\n", set.SessionAllocations)
		flags.sessionTracking = true
	}
	if opts.ShowAltStatus && set.IsAlt {
		sb.WriteString("- This is an ALT character\n")
	}
	if set.TankPriority {
		sb.WriteString("- Tank-role character: qualifies for tank priority\n")
	}
	if !set.BestParse.Disabled() || !set.MedianParse.Disabled() {
		label := opts.ParseZoneLabel
		if label == "" {
			label = "Zone"
		}
		if set.BestParse.Available() || set.MedianParse.Available() {
			// The metric differs per role: hps for healers, dps otherwise.
			if cand.ParseMetric != "" {
				label += " " + strings.ToUpper(cand.ParseMetric)
			}
			fmt.Fprintf(&sb, "- %s Parses: Best %s, Median %s\n", label, set.BestParse.Format(1), set.MedianParse.Format(1))
		} else {
			fmt.Fprintf(&sb, "- %s Parses: none recorded\n", label)
		}
	}
	if !set.IlvlUpgrade.Disabled() {
		if v, ok := set.IlvlUpgrade.Value(); ok {
			fmt.Fprintf(&sb, "- Upgrade size: %d item levels\n", int(v))
		} else {
			sb.WriteString("- Upgrade size: unknown (no equipped data)\n")
		}
		flags.ilvlUpgrade = true
	}
	if !set.TierTokenProgress.Disabled() {
		if v, ok := set.TierTokenProgress.Value(); ok && item.TierSetSize > 0 {
			fmt.Fprintf(&sb, "- Tier set pieces owned: %d of %d\n", int(v), item.TierSetSize)
		}
	}
	if opts.ShowNotes {
		for _, note := range cand.Notes {
			if !note.OfficerOnly {
				continue
			}
			fmt.Fprintf(&sb, "- Custom Note: %s\n", note.Text)
			flags.customNotes = true
		}
	}
	return sb.String()
}

func buildTask(candidateCount int) string {
	var sb strings.Builder
	sb.WriteString("## Your Task\n")
	sb.WriteString("Rank ALL candidates from most to least deserving of this item and select the winner.\n")
	sb.WriteString("- The winner must be your Rank 1 candidate\n")
	sb.WriteString("- Use candidate names exactly as written above (without the [ALT]/[OFFSPEC] markers)\n")
	sb.WriteString("- Give one-sentence reasoning per candidate, referencing the deciding policy rule\n\n")
	sb.WriteString("Respond in this exact format:\n")
	sb.WriteString("Winner: [Name]\n")
	for i := 1; i <= candidateCount; i++ {
		fmt.Fprintf(&sb, "Rank %d: [Name] | [reasoning]\n", i)
	}
	return sb.String()
}

func roleLabel(a model.Archetype) string {
	switch a {
	case model.ArchetypeTank:
		return "Tank"
	case model.ArchetypeHealer:
		return "Healer"
	case model.ArchetypeDPS:
		return "DPS"
	}
	return string(a)
}

func largestSection(sections map[string]string) (string, int) {
	var name string
	size := -1
	for k, v := range sections {
		if len(v) > size || (len(v) == size && k < name) {
			name, size = k, len(v)
		}
	}
	return name, size
}

// Corrective returns the follow-up instruction appended to the user prompt
// when the first reply fails validation.
func Corrective(reason string) string {
	return fmt.Sprintf("\n\nYour previous reply was invalid: %s.\nRespond again using EXACTLY the requested format, covering every listed candidate exactly once.", reason)
}
