package matching

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/kalambet/preceptor/internal/catalog"
)

func TestPatientMatchEmptyCatalog(t *testing.T) {
	m := NewPatientMatcher(nil, testRand())
	if _, _, err := m.Match(catalog.Case{Name: "anything"}); !errors.Is(err, ErrNoPatients) {
		t.Fatalf("got %v, want ErrNoPatients", err)
	}
}

func TestPatientMatchCategoryScore(t *testing.T) {
	patients := []catalog.PatientArchetype{
		{Name: "healthy adult", Categories: []string{"general"}},
		{Name: "pediatric asthmatic", Categories: []string{"pediatric"}},
	}
	c := catalog.Case{Name: "Pediatric Hernia Repair", Keywords: []string{"pediatric", "hernia"}}

	for trial := 0; trial < 100; trial++ {
		m := NewPatientMatcher(patients, rand.New(rand.NewSource(int64(trial))))
		selected, score, err := m.Match(c)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if selected.Name != "pediatric asthmatic" {
			t.Fatalf("trial %d selected %q, want the category match", trial, selected.Name)
		}
		if score < 10 {
			t.Fatalf("category match scored %d, want at least 10", score)
		}
	}
}

func TestPatientMatchComorbidityScore(t *testing.T) {
	patients := []catalog.PatientArchetype{
		{Name: "diabetic", Comorbidities: []string{"type 2 diabetes"}},
		{Name: "baseline", Comorbidities: []string{"none"}},
	}
	c := catalog.Case{Name: "Foot Ulcer Debridement", Keywords: []string{"diabetes"}}

	m := NewPatientMatcher(patients, testRand())
	selected, score, err := m.Match(c)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if selected.Name != "diabetic" {
		t.Errorf("selected %q, want the comorbidity match", selected.Name)
	}
	if score != 5 {
		t.Errorf("comorbidity match scored %d, want 5", score)
	}
}

func TestPatientMatchZeroScoreFallsBackToRandom(t *testing.T) {
	patients := []catalog.PatientArchetype{
		{Name: "a"}, {Name: "b"}, {Name: "c"},
	}
	c := catalog.Case{Name: "Unrelated Procedure"}

	m := NewPatientMatcher(patients, testRand())
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		selected, score, err := m.Match(c)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if score != 0 {
			t.Fatalf("unmatched case scored %d, want 0", score)
		}
		seen[selected.Name] = true
	}
	if len(seen) != len(patients) {
		t.Errorf("random fallback only reached %d of %d archetypes", len(seen), len(patients))
	}
}

func TestPatientMatchTieBreak(t *testing.T) {
	patients := []catalog.PatientArchetype{
		{Name: "cardiac elder", Categories: []string{"cardiac"}},
		{Name: "cardiac athlete", Categories: []string{"cardiac"}},
		{Name: "baseline"},
	}
	c := catalog.Case{Name: "Valve Replacement", Keywords: []string{"cardiac"}}

	m := NewPatientMatcher(patients, testRand())
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		selected, score, err := m.Match(c)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if score != 10 {
			t.Fatalf("tied candidates scored %d, want 10", score)
		}
		if selected.Name == "baseline" {
			t.Fatal("zero-score archetype won over tied matches")
		}
		seen[selected.Name] = true
	}
	if len(seen) != 2 {
		t.Errorf("tie break reached %d of 2 tied archetypes", len(seen))
	}
}
