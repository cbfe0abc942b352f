package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/raidtools/lootcouncil/internal/domain/model"
)

// ParsedDecision is the validated structure of a model reply.
type ParsedDecision struct {
	Winner model.Identity
	Ranked []model.RankedCandidate
}

// Parse validates a model reply against the submitted candidate set. The
// reply must name exactly one winner from the set, rank every submitted
// candidate exactly once with the winner first, and carry reasoning for the
// winner. Any violation
// is a MalformedResponseError; the caller may retry once with a corrective
// instruction before giving up on the item.
func Parse(reply string, submitted []model.Identity) (*ParsedDecision, error) {
	if len(submitted) == 0 {
		return nil, &MalformedResponseError{Reason: "no candidates were submitted"}
	}

	byName := make(map[string]model.Identity, len(submitted)*2)
	ambiguous := make(map[string]bool, len(submitted))
	for _, id := range submitted {
		byName[strings.ToLower(id.String())] = id
		// Models often drop the realm suffix; accept the bare name when it
		// is unambiguous. Once a bare name has clashed it stays ambiguous
		// no matter how many more candidates share it.
		bare := strings.ToLower(id.Name)
		if _, clash := byName[bare]; clash || ambiguous[bare] {
			delete(byName, bare)
			ambiguous[bare] = true
			continue
		}
		byName[bare] = id
	}

	var winnerRaw string
	var ranked []model.RankedCandidate

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)

		switch {
		case strings.HasPrefix(lower, "winner:"):
			winnerRaw = cleanName(line[len("winner:"):])

		case strings.HasPrefix(lower, "rank "):
			rest := line[len("rank "):]
			colon := strings.Index(rest, ":")
			if colon < 0 {
				continue
			}
			rank, err := strconv.Atoi(strings.TrimSpace(rest[:colon]))
			if err != nil {
				continue
			}
			name, reasoning := splitRankBody(rest[colon+1:])
			ranked = append(ranked, model.RankedCandidate{
				Rank:      rank,
				Identity:  model.Identity{Name: name}, // resolved below
				Reasoning: reasoning,
			})
		}
	}

	if winnerRaw == "" {
		return nil, &MalformedResponseError{Reason: "reply names no winner"}
	}
	winner, ok := byName[strings.ToLower(winnerRaw)]
	if !ok {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("winner %q is not in the submitted candidate set", winnerRaw)}
	}

	// Resolve ranked names and check coverage: every submitted candidate
	// exactly once, no strangers, no duplicates.
	covered := make(map[string]bool, len(submitted))
	for i := range ranked {
		raw := ranked[i].Identity.Name
		id, ok := byName[strings.ToLower(raw)]
		if !ok {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("ranked candidate %q is not in the submitted candidate set", raw)}
		}
		if covered[id.Key()] {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("candidate %s appears more than once in the ranking", id)}
		}
		covered[id.Key()] = true
		ranked[i].Identity = id
	}
	for _, id := range submitted {
		if !covered[id.Key()] {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("ranking omits candidate %s", id)}
		}
	}

	// Normalize rank numbering to positional order as written.
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	if !ranked[0].Identity.Equal(winner) {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("winner %s is not ranked first", winner)}
	}

	winnerReasoning := ""
	for _, r := range ranked {
		if r.Identity.Equal(winner) {
			winnerReasoning = r.Reasoning
			break
		}
	}
	if strings.TrimSpace(winnerReasoning) == "" {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("no reasoning given for winner %s", winner)}
	}

	return &ParsedDecision{Winner: winner, Ranked: ranked}, nil
}

// splitRankBody separates "Name | reasoning" into its parts.
func splitRankBody(body string) (name, reasoning string) {
	if pipe := strings.Index(body, "|"); pipe >= 0 {
		return cleanName(body[:pipe]), strings.TrimSpace(body[pipe+1:])
	}
	return cleanName(body), ""
}

// cleanName strips whitespace, brackets and the display markers the prompt
// warned the model not to echo back.
func cleanName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "[]")
	for _, marker := range []string{"[ALT]", "[OFFSPEC]"} {
		s = strings.ReplaceAll(s, marker, "")
	}
	return strings.TrimSpace(s)
}
