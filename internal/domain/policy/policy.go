// Package policy renders the guild's decision priorities into the
// instruction text the prompt builder embeds. Simple mode produces a
// deterministic numbered rule list from the configured metric order; custom
// mode passes operator-authored text through unchanged after a budget check.
package policy

import (
	"fmt"
	"strings"

	"github.com/raidtools/lootcouncil/internal/domain/model"
)

// Modes.
const (
	ModeSimple = "simple"
	ModeCustom = "custom"
)

// Input is the policy configuration for one run. Exactly one mode is active.
type Input struct {
	Mode string

	// MetricOrder is the priority order for simple mode. Metrics missing
	// from the list are appended in default order so config migrations
	// never silently drop a rule.
	MetricOrder []model.Metric
	Enabled     map[model.Metric]bool

	CustomText string
	// MaxChars caps custom text. Oversized policy fails the run; it is
	// never truncated because truncation could alter its meaning.
	MaxChars int

	TankPriority  bool
	MainsOverAlts bool
	ShowAltStatus bool

	// Sub-settings referenced by the rendered rules.
	AttendanceLookbackDays int
	LootLookbackDays       int
	ParseZoneLabel         string
}

// ruleTemplate renders one metric's rule, including its comparison
// direction and sub-settings.
func (in Input) ruleTemplate(m model.Metric) string {
	switch m {
	case model.MetricAttendance:
		return fmt.Sprintf("Give preference to raiders with higher attendance percentage (last %d days).", in.AttendanceLookbackDays)
	case model.MetricRecentLoot:
		return fmt.Sprintf("Give preference to raiders who have received fewer items in the last %d days.", in.LootLookbackDays)
	case model.MetricWishlistPosition:
		return "Give preference to raiders who ranked this item higher on their wishlist (lower position = more desired)."
	case model.MetricParses:
		label := in.ParseZoneLabel
		if label == "" {
			label = "the configured zone"
		}
		return fmt.Sprintf("Give preference to raiders with better parse performance in %s.", label)
	case model.MetricIlvlUpgrade:
		return "Give preference to raiders with a larger item level upgrade."
	case model.MetricTierTokens:
		return "Prioritise raiders who are closer to completing their 2-piece or 4-piece tier set bonus."
	}
	return ""
}

// Encode produces the policy text for the prompt. Custom text over budget
// returns an error wrapping ErrPolicyTooLong; the run aborts before any
// item is processed.
func Encode(in Input) (string, error) {
	var lines []string

	// Standing rules precede both modes.
	if in.TankPriority {
		lines = append(lines, "Always prioritise tank-role characters for any mainspec items.")
	}
	if in.ShowAltStatus && in.MainsOverAlts {
		lines = append(lines, "Give preference to main characters over alt characters.")
	}

	switch in.Mode {
	case ModeCustom:
		text := strings.TrimSpace(in.CustomText)
		if in.MaxChars > 0 && len(text) > in.MaxChars {
			return "", fmt.Errorf("%w: %d characters exceeds the %d character budget", ErrPolicyTooLong, len(text), in.MaxChars)
		}
		lines = append(lines, text)

	default:
		rules := in.simpleRules()
		if len(rules) == 0 {
			lines = append(lines, "No additional rules configured.")
			break
		}
		lines = append(lines, "Apply the following rules in STRICT ORDER (Rule 1 = highest priority):")
		lines = append(lines, rules...)
		lines = append(lines, "If two candidates are equal on a rule, decide by the next rule in order. If no rules remain, state that the candidates are tied rather than choosing arbitrarily.")
	}

	return strings.Join(lines, "\n"), nil
}

// simpleRules renders the numbered rule list for the enabled metrics in
// priority order.
func (in Input) simpleRules() []string {
	order := make([]model.Metric, 0, len(in.MetricOrder))
	seen := map[model.Metric]struct{}{}
	for _, m := range in.MetricOrder {
		order = append(order, m)
		seen[m] = struct{}{}
	}
	for _, m := range model.AllMetrics() {
		if _, ok := seen[m]; !ok {
			order = append(order, m)
		}
	}

	var rules []string
	num := 1
	for _, m := range order {
		if !in.Enabled[m] {
			continue
		}
		tmpl := in.ruleTemplate(m)
		if tmpl == "" {
			continue
		}
		rules = append(rules, fmt.Sprintf("RULE %d: %s", num, tmpl))
		num++
	}
	return rules
}
