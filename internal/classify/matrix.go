package classify

import "fmt"

// Row holds the classification thresholds for one class standing. Levels are
// checked top-down; NEEDS_IMPROVEMENT has no behavior threshold.
type Row struct {
	ExcellentAC        float64 `json:"excellent_ac"`
	ExcellentPC        float64 `json:"excellent_pc"`
	GoodAC             float64 `json:"good_ac"`
	GoodPC             float64 `json:"good_pc"`
	SatisfactoryAC     float64 `json:"satisfactory_ac"`
	SatisfactoryPC     float64 `json:"satisfactory_pc"`
	NeedsImprovementAC float64 `json:"needs_improvement_ac"`
}

// Matrix maps class standing (1-4) to its threshold row. Like the scoring
// tables, the matrix is configuration validated once at startup.
type Matrix map[int]Row

// DefaultMatrix returns the shipped threshold matrix.
func DefaultMatrix() Matrix {
	return Matrix{
		1: {ExcellentAC: 85, ExcellentPC: 3.5, GoodAC: 70, GoodPC: 3.0, SatisfactoryAC: 50, SatisfactoryPC: 2.5, NeedsImprovementAC: 30},
		2: {ExcellentAC: 90, ExcellentPC: 3.5, GoodAC: 80, GoodPC: 3.0, SatisfactoryAC: 65, SatisfactoryPC: 2.5, NeedsImprovementAC: 45},
		3: {ExcellentAC: 95, ExcellentPC: 3.7, GoodAC: 85, GoodPC: 3.3, SatisfactoryAC: 75, SatisfactoryPC: 3.0, NeedsImprovementAC: 60},
		4: {ExcellentAC: 98, ExcellentPC: 3.8, GoodAC: 90, GoodPC: 3.5, SatisfactoryAC: 80, SatisfactoryPC: 3.2, NeedsImprovementAC: 70},
	}
}

// Validate checks that every class standing has a row, that thresholds within
// a row are ordered, and that strictness never decreases as standing rises.
// A higher standing must never classify the same averages more favorably.
func (m Matrix) Validate() error {
	for standing := 1; standing <= 4; standing++ {
		row, ok := m[standing]
		if !ok {
			return fmt.Errorf("threshold matrix: missing row for class standing %d", standing)
		}
		if row.ExcellentAC < row.GoodAC || row.GoodAC < row.SatisfactoryAC || row.SatisfactoryAC < row.NeedsImprovementAC {
			return fmt.Errorf("threshold matrix: competency thresholds out of order for class standing %d", standing)
		}
		if row.ExcellentPC < row.GoodPC || row.GoodPC < row.SatisfactoryPC {
			return fmt.Errorf("threshold matrix: behavior thresholds out of order for class standing %d", standing)
		}
	}

	for standing := 2; standing <= 4; standing++ {
		lo, hi := m[standing-1], m[standing]
		if hi.ExcellentAC < lo.ExcellentAC || hi.GoodAC < lo.GoodAC ||
			hi.SatisfactoryAC < lo.SatisfactoryAC || hi.NeedsImprovementAC < lo.NeedsImprovementAC ||
			hi.ExcellentPC < lo.ExcellentPC || hi.GoodPC < lo.GoodPC || hi.SatisfactoryPC < lo.SatisfactoryPC {
			return fmt.Errorf("threshold matrix: class standing %d is less strict than %d", standing, standing-1)
		}
	}
	return nil
}
