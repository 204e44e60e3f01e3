package matching

import (
	"math/rand"
	"strings"

	"github.com/kalambet/preceptor/internal/catalog"
)

// categoryTriggers maps each canonical archetype category to the substrings
// that activate it when found in a case's text.
var categoryTriggers = map[string][]string{
	"pediatric":     {"pediatric", "ped", "child", "infant", "adolescent"},
	"cardiac":       {"cardiac", "heart", "coronary", "valve", "cabg"},
	"orthopedic":    {"orthopedic", "ortho", "fracture", "joint", "bone", "knee", "hip"},
	"trauma":        {"trauma", "emergency", "blunt", "penetrating", "laceration"},
	"bariatric":     {"bariatric", "obesity", "gastric bypass", "sleeve gastrectomy"},
	"neurosurgical": {"neuro", "craniotomy", "brain", "spine", "spinal"},
	"thoracic":      {"thoracic", "lung", "chest", "lobectomy", "thoracotomy"},
	"vascular":      {"vascular", "artery", "vein", "aneurysm", "endarterectomy"},
	"ent":           {"ent", "tonsil", "sinus", "ear", "throat", "airway"},
	"obstetric":     {"obstetric", "cesarean", "c-section", "delivery", "pregnan"},
}

// PatientMatcher scores archetypes against a selected case and returns the
// best match.
type PatientMatcher struct {
	patients []catalog.PatientArchetype
	rng      *rand.Rand
}

// NewPatientMatcher creates a matcher over the canonical archetype catalog.
func NewPatientMatcher(patients []catalog.PatientArchetype, rng *rand.Rand) *PatientMatcher {
	return &PatientMatcher{patients: patients, rng: rng}
}

// Match scores every archetype: +10 per category triggered by the case text
// and declared by the archetype, +5 per case keyword appearing among the
// archetype's comorbidities. The highest score wins; ties break uniformly at
// random, and a zero maximum falls back to a uniform-random archetype.
func (m *PatientMatcher) Match(c catalog.Case) (catalog.PatientArchetype, int, error) {
	if len(m.patients) == 0 {
		return catalog.PatientArchetype{}, 0, ErrNoPatients
	}

	searchText := strings.ToLower(c.Name + " " + c.Description + " " + strings.Join(c.Keywords, " "))

	best := 0
	var tied []catalog.PatientArchetype
	for _, p := range m.patients {
		score := scoreArchetype(p, searchText, c.Keywords)
		switch {
		case score > best:
			best = score
			tied = tied[:0]
			tied = append(tied, p)
		case score == best:
			tied = append(tied, p)
		}
	}

	if best == 0 {
		return m.patients[m.rng.Intn(len(m.patients))], 0, nil
	}
	return tied[m.rng.Intn(len(tied))], best, nil
}

func scoreArchetype(p catalog.PatientArchetype, searchText string, keywords []string) int {
	score := 0

	for category, triggers := range categoryTriggers {
		if !p.HasCategory(category) {
			continue
		}
		for _, trigger := range triggers {
			if strings.Contains(searchText, trigger) {
				score += 10
				break
			}
		}
	}

	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" {
			continue
		}
		for _, comorbidity := range p.Comorbidities {
			if strings.Contains(strings.ToLower(comorbidity), needle) {
				score += 5
				break
			}
		}
	}

	return score
}
