package scoring

import (
	"fmt"
	"math/rand"
)

// Synthesizer draws evaluation scores from the configured probability tables.
// The random source is injected so tests can replay draws deterministically.
// A Synthesizer is cheap to construct; callers that run concurrently should
// build one per request since *rand.Rand is not goroutine-safe.
type Synthesizer struct {
	tables Tables
	rng    *rand.Rand
}

// NewSynthesizer creates a Synthesizer over validated tables.
func NewSynthesizer(tables Tables, rng *rand.Rand) (*Synthesizer, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("scoring: nil random source")
	}
	return &Synthesizer{tables: tables, rng: rng}, nil
}

// DrawCompetencies returns the 13 competency scores for a trainee at the
// given class standing. Each score is an independent uniform draw from the
// tier's decile set.
func (s *Synthesizer) DrawCompetencies(classStanding int) ([]int, error) {
	deciles, ok := s.tables.CompetencyDeciles[classStanding]
	if !ok {
		return nil, fmt.Errorf("scoring: no competency deciles for class standing %d", classStanding)
	}

	scores := make([]int, NumCompetencies)
	for i := range scores {
		scores[i] = deciles[s.rng.Intn(len(deciles))]
	}
	return scores, nil
}

// DrawBehaviors returns the 11 behavior scores. Each is drawn independently
// via the three-stage process: dangerous sentinel, then not-applicable
// sentinel, then a weighted star rating in 1-4.
func (s *Synthesizer) DrawBehaviors() []int {
	scores := make([]int, NumBehaviors)
	for i := range scores {
		scores[i] = s.drawBehavior()
	}
	return scores
}

func (s *Synthesizer) drawBehavior() int {
	if s.rng.Float64() < s.tables.DangerousProb {
		return Dangerous
	}
	if s.rng.Float64() < s.tables.NotApplicableProb {
		return NotApplicable
	}

	r := s.rng.Float64()
	var cum float64
	for star, w := range s.tables.StarWeights {
		cum += w
		if r < cum {
			return star + 1
		}
	}
	// Float64 rounding can leave r marginally above the cumulative sum.
	return len(s.tables.StarWeights)
}
