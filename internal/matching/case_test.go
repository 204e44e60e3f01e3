package matching

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/kalambet/preceptor/internal/catalog"
	"github.com/kalambet/preceptor/internal/history"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(7))
}

func TestCaseMatchEmptyCatalog(t *testing.T) {
	m := NewCaseMatcher(nil, testRand())
	if _, _, err := m.Match(history.StruggleProfile{}); !errors.Is(err, ErrNoCases) {
		t.Fatalf("got %v, want ErrNoCases", err)
	}
}

func TestCaseMatchReinforcementTier(t *testing.T) {
	cases := []catalog.Case{
		{Name: "Laparoscopic Appendectomy"},
		{Name: "Total Knee Replacement"},
		{Name: "Coronary Artery Bypass"},
	}
	profile := history.StruggleProfile{RecentCases: []string{"appendectomy"}}

	// Exactly one case overlaps the recent case type, so every trial must
	// return it regardless of the random source.
	for trial := 0; trial < 100; trial++ {
		m := NewCaseMatcher(cases, rand.New(rand.NewSource(int64(trial))))
		selected, rationale, err := m.Match(profile)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if selected.Name != "Laparoscopic Appendectomy" {
			t.Fatalf("trial %d selected %q, want the reinforcement match", trial, selected.Name)
		}
		if !strings.Contains(rationale, "appendectomy") {
			t.Fatalf("rationale %q does not name the recent case", rationale)
		}
	}
}

func TestCaseMatchReinforcementViaKeyword(t *testing.T) {
	cases := []catalog.Case{
		{Name: "Procedure A", Keywords: []string{"hernia repair"}},
		{Name: "Procedure B", Keywords: []string{"cholecystectomy"}},
	}
	profile := history.StruggleProfile{RecentCases: []string{"Hernia"}}

	m := NewCaseMatcher(cases, testRand())
	selected, _, err := m.Match(profile)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if selected.Name != "Procedure A" {
		t.Errorf("selected %q, want keyword overlap match", selected.Name)
	}
}

func TestCaseMatchKeywordTier(t *testing.T) {
	cases := []catalog.Case{
		{Name: "Bowel Resection", Description: "requires meticulous suturing and anastomosis"},
		{Name: "Skin Biopsy", Description: "superficial excision"},
	}
	profile := history.StruggleProfile{
		RecentCases:        []string{"craniotomy"},
		StrugglingKeywords: []string{"suturing"},
	}

	m := NewCaseMatcher(cases, testRand())
	selected, rationale, err := m.Match(profile)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if selected.Name != "Bowel Resection" {
		t.Errorf("selected %q, want the keyword-search match", selected.Name)
	}
	if !strings.Contains(rationale, "Targets") {
		t.Errorf("rationale %q should describe the struggle target", rationale)
	}
}

func TestCaseMatchKeywordTierLimitsToFirstFive(t *testing.T) {
	cases := []catalog.Case{
		{Name: "Alpha", Keywords: []string{"sixth"}},
		{Name: "Beta", Keywords: []string{"third"}},
	}
	profile := history.StruggleProfile{
		StrugglingKeywords: []string{"first", "second", "third", "fourth", "fifth", "sixth"},
	}

	// "sixth" is past the search window, so only Beta can match.
	for trial := 0; trial < 50; trial++ {
		m := NewCaseMatcher(cases, rand.New(rand.NewSource(int64(trial))))
		selected, _, err := m.Match(profile)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if selected.Name != "Beta" {
			t.Fatalf("trial %d selected %q, want Beta", trial, selected.Name)
		}
	}
}

func TestCaseMatchRandomTier(t *testing.T) {
	const n = 20
	var cases []catalog.Case
	for i := 0; i < n; i++ {
		cases = append(cases, catalog.Case{Name: fmt.Sprintf("case %d", i)})
	}

	m := NewCaseMatcher(cases, testRand())
	counts := make(map[string]int)
	const trials = 10_000
	for i := 0; i < trials; i++ {
		selected, rationale, err := m.Match(history.StruggleProfile{})
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if !strings.Contains(rationale, "randomly selected") {
			t.Fatalf("empty profile should fall through to random exposure, got %q", rationale)
		}
		counts[selected.Name]++
	}

	// Chi-squared against uniform; 36.19 is the 0.99 quantile for 19
	// degrees of freedom.
	expected := float64(trials) / n
	chi := 0.0
	for _, c := range cases {
		d := float64(counts[c.Name]) - expected
		chi += d * d / expected
	}
	if chi > 36.19 {
		t.Errorf("random tier is not uniform: chi-squared %.2f, counts %v", chi, counts)
	}
}

func TestStruggleRationaleNamesMetrics(t *testing.T) {
	profile := history.StruggleProfile{
		WeakCompetencyHits: []history.WeakHit{
			{Metric: "suturing"}, {Metric: "knot tying"}, {Metric: "hemostasis management"}, {Metric: "draping and positioning"},
		},
		WeakBehaviorHits: []history.WeakHit{
			{Metric: "communication"}, {Metric: "teamwork"}, {Metric: "initiative"},
		},
	}

	r := struggleRationale(profile)
	for _, metric := range []string{"suturing", "knot tying", "hemostasis management", "communication", "teamwork"} {
		if !strings.Contains(r, metric) {
			t.Errorf("rationale %q missing metric %q", r, metric)
		}
	}
	for _, over := range []string{"draping and positioning", "initiative"} {
		if strings.Contains(r, over) {
			t.Errorf("rationale %q should cap listed metrics, found %q", r, over)
		}
	}
}
