package matching

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/kalambet/preceptor/internal/catalog"
	"github.com/kalambet/preceptor/internal/history"
	"github.com/kalambet/preceptor/internal/storage"
)

// historyWindow is how many recent evaluations feed the struggle profile.
const historyWindow = 10

// HistoryStore is the read-only evaluation feed the service mines.
// Implemented by storage.Store.
type HistoryStore interface {
	ListEvaluationsByStudent(studentID string, limit int) ([]storage.EvaluationRecord, error)
}

// Assignment is the outcome of one matching request.
type Assignment struct {
	Profile   history.StruggleProfile  `json:"profile"`
	Case      catalog.Case             `json:"case"`
	Patient   catalog.PatientArchetype `json:"patient"`
	Score     int                      `json:"patient_match_score"`
	Rationale string                   `json:"rationale"`
}

// Service produces practice assignments. Catalogs are immutable after
// construction; every request gets its own random source, so concurrent
// assignment requests need no coordination.
type Service struct {
	store    HistoryStore
	cases    []catalog.Case
	patients []catalog.PatientArchetype

	// NewRand builds the per-request random source. Tests override it with a
	// fixed seed for deterministic replay.
	NewRand func() *rand.Rand
}

// NewService creates an assignment Service over the given history feed and
// canonical catalogs.
func NewService(store HistoryStore, cases []catalog.Case, patients []catalog.PatientArchetype) *Service {
	return &Service{
		store:    store,
		cases:    cases,
		patients: patients,
		NewRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// NextAssignment mines the student's evaluation history and matches a case
// and patient archetype against the resulting struggle profile.
func (s *Service) NextAssignment(studentID string) (Assignment, error) {
	records, err := s.store.ListEvaluationsByStudent(studentID, historyWindow)
	if err != nil {
		return Assignment{}, fmt.Errorf("reading evaluation history: %w", err)
	}

	profile := history.Mine(records)
	rng := s.NewRand()

	selected, rationale, err := NewCaseMatcher(s.cases, rng).Match(profile)
	if err != nil {
		return Assignment{}, err
	}

	patient, score, err := NewPatientMatcher(s.patients, rng).Match(selected)
	if err != nil {
		return Assignment{}, err
	}

	return Assignment{
		Profile:   profile,
		Case:      selected,
		Patient:   patient,
		Score:     score,
		Rationale: rationale,
	}, nil
}
