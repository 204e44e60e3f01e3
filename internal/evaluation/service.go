// Package evaluation composes score synthesis and performance classification
// into persisted evaluation records.
package evaluation

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/preceptor/internal/classify"
	"github.com/kalambet/preceptor/internal/scoring"
	"github.com/kalambet/preceptor/internal/storage"
)

// Store is the persistence surface the service needs. Implemented by
// storage.Store.
type Store interface {
	GetStudent(id string) (storage.StudentRow, error)
	SaveEvaluation(e storage.EvaluationRecord) error
}

// CreateParams describes one evaluation to generate.
type CreateParams struct {
	StudentID  string
	CaseType   string
	Comments   string
	FocusAreas string
}

// Service generates and persists evaluations. The probability tables and
// threshold matrix are validated before the service is built; each Create
// call draws from its own random source.
type Service struct {
	store  Store
	tables scoring.Tables
	matrix classify.Matrix

	// NewRand builds the per-call random source; tests pin the seed.
	NewRand func() *rand.Rand
	// Now supplies the completion timestamp; tests pin the clock.
	Now func() time.Time
}

// NewService validates the configuration tables and returns a Service.
func NewService(store Store, tables scoring.Tables, matrix classify.Matrix) (*Service, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	if err := matrix.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		store:  store,
		tables: tables,
		matrix: matrix,
		NewRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		Now: time.Now,
	}, nil
}

// Create draws scores for the student's class standing, classifies them, and
// appends the resulting record. The record is immutable once saved.
func (s *Service) Create(p CreateParams) (storage.EvaluationRecord, classify.Result, error) {
	student, err := s.store.GetStudent(p.StudentID)
	if err != nil {
		return storage.EvaluationRecord{}, classify.Result{}, fmt.Errorf("looking up student %s: %w", p.StudentID, err)
	}

	synth, err := scoring.NewSynthesizer(s.tables, s.NewRand())
	if err != nil {
		return storage.EvaluationRecord{}, classify.Result{}, err
	}

	competencies, err := synth.DrawCompetencies(student.ClassStanding)
	if err != nil {
		return storage.EvaluationRecord{}, classify.Result{}, err
	}
	behaviors := synth.DrawBehaviors()

	result, err := classify.Classify(s.matrix, student.ClassStanding, competencies, behaviors)
	if err != nil {
		return storage.EvaluationRecord{}, classify.Result{}, err
	}

	record := storage.EvaluationRecord{
		ID:               uuid.New().String(),
		StudentID:        student.ID,
		CaseType:         p.CaseType,
		Competencies:     competencies,
		Behaviors:        behaviors,
		Comments:         p.Comments,
		FocusAreas:       p.FocusAreas,
		PerformanceLevel: string(result.Level),
		CompletionDate:   s.Now().UTC(),
	}
	if err := s.store.SaveEvaluation(record); err != nil {
		return storage.EvaluationRecord{}, classify.Result{}, fmt.Errorf("saving evaluation: %w", err)
	}

	return record, result, nil
}
