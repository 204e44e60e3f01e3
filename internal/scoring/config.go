// Package scoring synthesizes competency and behavior scores for a trainee
// evaluation under an experience-tiered probability model.
package scoring

import (
	"fmt"
	"math"
)

const (
	// NumCompetencies is the number of graded clinical skills per evaluation.
	NumCompetencies = 13
	// NumBehaviors is the number of professional-conduct ratings per evaluation.
	NumBehaviors = 11

	// Dangerous is the behavior sentinel that forces a DANGEROUS classification.
	Dangerous = -1
	// NotApplicable is the behavior sentinel for skills not observed.
	NotApplicable = 0
)

// CompetencyLabels names the graded clinical skills, indexed ac_0..ac_12.
var CompetencyLabels = [NumCompetencies]string{
	"aseptic technique",
	"instrument handling",
	"anatomy identification",
	"suturing",
	"knot tying",
	"hemostasis management",
	"tissue handling",
	"wound closure",
	"draping and positioning",
	"equipment setup",
	"specimen handling",
	"count accuracy",
	"documentation",
}

// BehaviorLabels names the professional-conduct ratings, indexed pc_0..pc_10.
var BehaviorLabels = [NumBehaviors]string{
	"punctuality",
	"communication",
	"teamwork",
	"professionalism",
	"initiative",
	"receptiveness to feedback",
	"situational awareness",
	"patient advocacy",
	"composure under pressure",
	"preparedness",
	"integrity",
}

// CompetencyMetric returns the wire name of competency index i (ac_0..ac_12).
func CompetencyMetric(i int) string { return fmt.Sprintf("ac_%d", i) }

// BehaviorMetric returns the wire name of behavior index i (pc_0..pc_10).
func BehaviorMetric(i int) string { return fmt.Sprintf("pc_%d", i) }

// Tables holds every probability used by the synthesizer. Values are
// configuration, not code: they load with defaults, may be overridden, and are
// validated once at startup. An invalid table aborts startup rather than
// surfacing at first draw.
type Tables struct {
	// CompetencyDeciles maps class standing (1-4) to the decile values a
	// competency score is drawn from, uniformly.
	CompetencyDeciles map[int][]int `json:"competency_deciles"`

	// DangerousProb is the chance of the -1 behavior sentinel.
	DangerousProb float64 `json:"dangerous_prob"`

	// NotApplicableProb is the chance of the 0 sentinel, given not dangerous.
	// Upstream guidance gives a 5-10% range; this is the adopted fixed point
	// and is tunable here without touching code.
	NotApplicableProb float64 `json:"not_applicable_prob"`

	// StarWeights are the draw weights for star ratings 1-4, given neither
	// sentinel fired. Must sum to exactly 1.
	StarWeights [4]float64 `json:"star_weights"`
}

// DefaultTables returns the shipped probability configuration.
func DefaultTables() Tables {
	return Tables{
		CompetencyDeciles: map[int][]int{
			1: {0, 10, 20, 30, 40},
			2: {40, 50, 60, 70, 80},
			3: {80, 90, 100},
			4: {80, 90, 100},
		},
		DangerousProb:     0.002,
		NotApplicableProb: 0.075,
		StarWeights:       [4]float64{0.02, 0.03, 0.90, 0.05},
	}
}

const weightSumTolerance = 1e-9

// Validate checks the tables for internal consistency. It is called once at
// startup via config.Load.
func (t Tables) Validate() error {
	for standing := 1; standing <= 4; standing++ {
		deciles, ok := t.CompetencyDeciles[standing]
		if !ok || len(deciles) == 0 {
			return fmt.Errorf("scoring tables: no competency deciles for class standing %d", standing)
		}
		for _, v := range deciles {
			if v < 0 || v > 100 || v%10 != 0 {
				return fmt.Errorf("scoring tables: decile %d for class standing %d is not a multiple of 10 in [0,100]", v, standing)
			}
		}
	}

	if t.DangerousProb < 0 || t.DangerousProb > 1 {
		return fmt.Errorf("scoring tables: dangerous probability %v out of [0,1]", t.DangerousProb)
	}
	if t.NotApplicableProb < 0 || t.NotApplicableProb > 1 {
		return fmt.Errorf("scoring tables: not-applicable probability %v out of [0,1]", t.NotApplicableProb)
	}

	var sum float64
	for i, w := range t.StarWeights {
		if w < 0 {
			return fmt.Errorf("scoring tables: star weight %d is negative", i+1)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("scoring tables: star weights sum to %v, want 1.0", sum)
	}
	return nil
}
