// Package classify maps synthesized evaluation scores to a discrete
// performance level using an experience-tiered threshold matrix.
package classify

import (
	"fmt"

	"github.com/kalambet/preceptor/internal/scoring"
)

// Level is a discrete performance classification.
type Level string

const (
	LevelDangerous        Level = "DANGEROUS"
	LevelPoor             Level = "POOR"
	LevelNeedsImprovement Level = "NEEDS_IMPROVEMENT"
	LevelSatisfactory     Level = "SATISFACTORY"
	LevelGood             Level = "GOOD"
	LevelExcellent        Level = "EXCELLENT"

	// LevelUnscored flags an evaluation whose behavior average is undefined
	// (every behavior score was a sentinel). It is an explicit outcome the
	// caller must handle, never a silent default.
	LevelUnscored Level = "UNSCORED"
)

// Result is the classifier output. BehaviorUndefined is set when PC averaging
// had no usable scores; Level is LevelUnscored in that case.
type Result struct {
	Level             Level
	CompetencyAvg     float64
	BehaviorAvg       float64
	BehaviorUndefined bool
}

// Classify applies the dangerous-sentinel override and the threshold matrix.
//
// Any -1 behavior score returns DANGEROUS immediately; nothing else in the
// record can override that. Otherwise the competency mean is taken over all
// scores and the behavior mean over scores that are neither -1 nor 0.
func Classify(m Matrix, classStanding int, competencies, behaviors []int) (Result, error) {
	row, ok := m[classStanding]
	if !ok {
		return Result{}, fmt.Errorf("classify: no threshold row for class standing %d", classStanding)
	}

	for _, b := range behaviors {
		if b == scoring.Dangerous {
			return Result{Level: LevelDangerous}, nil
		}
	}

	if len(competencies) == 0 {
		return Result{}, fmt.Errorf("classify: no competency scores")
	}
	var acSum int
	for _, c := range competencies {
		acSum += c
	}
	acAvg := float64(acSum) / float64(len(competencies))

	var pcSum, pcCount int
	for _, b := range behaviors {
		if b == scoring.Dangerous || b == scoring.NotApplicable {
			continue
		}
		pcSum += b
		pcCount++
	}
	if pcCount == 0 {
		return Result{Level: LevelUnscored, CompetencyAvg: acAvg, BehaviorUndefined: true}, nil
	}
	pcAvg := float64(pcSum) / float64(pcCount)

	res := Result{CompetencyAvg: acAvg, BehaviorAvg: pcAvg}
	switch {
	case acAvg >= row.ExcellentAC && pcAvg >= row.ExcellentPC:
		res.Level = LevelExcellent
	case acAvg >= row.GoodAC && pcAvg >= row.GoodPC:
		res.Level = LevelGood
	case acAvg >= row.SatisfactoryAC && pcAvg >= row.SatisfactoryPC:
		res.Level = LevelSatisfactory
	case acAvg >= row.NeedsImprovementAC:
		res.Level = LevelNeedsImprovement
	default:
		res.Level = LevelPoor
	}
	return res, nil
}
