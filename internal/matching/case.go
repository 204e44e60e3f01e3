// Package matching selects the next practice case and patient archetype for a
// trainee from their struggle profile.
//
// Both matchers are pure functions over immutable catalogs and an injected
// random source; concurrent requests each get their own matcher.
package matching

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/kalambet/preceptor/internal/catalog"
	"github.com/kalambet/preceptor/internal/history"
)

// ErrNoCases is returned when the case catalog is empty. Matching never
// returns a placeholder case.
var ErrNoCases = errors.New("no cases available")

// ErrNoPatients is returned when the patient-archetype catalog is empty.
var ErrNoPatients = errors.New("no patient archetypes available")

// CaseMatcher picks a practice case via a strict priority cascade: reinforce
// the most recent case type, else search by struggle keywords, else uniform
// random exposure.
type CaseMatcher struct {
	cases []catalog.Case
	rng   *rand.Rand
}

// NewCaseMatcher creates a matcher over the canonical case catalog.
func NewCaseMatcher(cases []catalog.Case, rng *rand.Rand) *CaseMatcher {
	return &CaseMatcher{cases: cases, rng: rng}
}

// Match returns the selected case and a human-readable rationale. Each
// cascade tier is attempted only when the previous one yields no candidates.
func (m *CaseMatcher) Match(profile history.StruggleProfile) (catalog.Case, string, error) {
	if len(m.cases) == 0 {
		return catalog.Case{}, "", ErrNoCases
	}

	// Tier 1: reinforce the most recently completed case type.
	if len(profile.RecentCases) > 0 {
		recent := profile.RecentCases[0]
		if candidates := m.reinforcementCandidates(recent); len(candidates) > 0 {
			selected := candidates[m.rng.Intn(len(candidates))]
			rationale := fmt.Sprintf("Reinforces the %q case type you completed most recently.", recent)
			return selected, rationale, nil
		}
	}

	// Tier 2: search by struggle signals.
	if len(profile.StrugglingKeywords) > 0 || len(profile.WeakCompetencyHits) > 0 || len(profile.WeakBehaviorHits) > 0 {
		if candidates := m.keywordCandidates(profile.StrugglingKeywords); len(candidates) > 0 {
			selected := candidates[m.rng.Intn(len(candidates))]
			return selected, struggleRationale(profile), nil
		}
	}

	// Tier 3: uniform random exposure.
	selected := m.cases[m.rng.Intn(len(m.cases))]
	rationale := "Broadens your exposure with a randomly selected case from the catalog."
	return selected, rationale, nil
}

// reinforcementCandidates finds cases whose name or keywords contain, or are
// contained by, the recent case type (case-insensitive both ways).
func (m *CaseMatcher) reinforcementCandidates(recent string) []catalog.Case {
	needle := strings.ToLower(strings.TrimSpace(recent))
	if needle == "" {
		return nil
	}

	var candidates []catalog.Case
	for _, c := range m.cases {
		if overlaps(strings.ToLower(c.Name), needle) {
			candidates = append(candidates, c)
			continue
		}
		for _, kw := range c.Keywords {
			if overlaps(strings.ToLower(kw), needle) {
				candidates = append(candidates, c)
				break
			}
		}
	}
	return candidates
}

// keywordCandidates finds cases whose combined text contains any of the first
// five struggling keywords.
func (m *CaseMatcher) keywordCandidates(keywords []string) []catalog.Case {
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}

	var candidates []catalog.Case
	for _, c := range m.cases {
		text := strings.ToLower(c.Name + " " + c.Description + " " + strings.Join(c.Keywords, " "))
		for _, kw := range keywords {
			if kw != "" && strings.Contains(text, kw) {
				candidates = append(candidates, c)
				break
			}
		}
	}
	return candidates
}

// struggleRationale names up to 3 weak competency metrics and up to 2 weak
// behavior metrics from the profile.
func struggleRationale(profile history.StruggleProfile) string {
	var parts []string

	var comp []string
	for _, hit := range profile.WeakCompetencyHits {
		if len(comp) == 3 {
			break
		}
		comp = append(comp, hit.Metric)
	}
	if len(comp) > 0 {
		parts = append(parts, "weak competency scores in "+strings.Join(comp, ", "))
	}

	var behav []string
	for _, hit := range profile.WeakBehaviorHits {
		if len(behav) == 2 {
			break
		}
		behav = append(behav, hit.Metric)
	}
	if len(behav) > 0 {
		parts = append(parts, "behavior ratings below expectations in "+strings.Join(behav, ", "))
	}

	if len(parts) == 0 {
		return "Targets areas flagged in your recent evaluation feedback."
	}
	return "Targets " + strings.Join(parts, " and ") + "."
}

// overlaps reports whether either string contains the other.
func overlaps(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}
