package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// EvaluationRecord is one completed trainee evaluation. Records are
// append-only: written once by the evaluation pipeline, read-only afterwards.
type EvaluationRecord struct {
	ID        string
	StudentID string
	CaseType  string

	// Competencies holds the 13 ac_* scores (multiples of 10 in [0,100]);
	// Behaviors holds the 11 pc_* scores (-1, 0, or 1-4). Either may be nil
	// when a stored row is malformed; consumers skip missing fields.
	Competencies []int
	Behaviors    []int

	Comments         string
	FocusAreas       string // semicolon-delimited free text
	PerformanceLevel string
	CompletionDate   time.Time
}

// StudentRow is a roster entry mirrored into storage so evaluations can be
// created without re-reading the roster file.
type StudentRow struct {
	ID            string
	Name          string
	ClassStanding int
}

// ReferenceDoc is a grounding-corpus document, searchable by the keyword
// provider of the content resolver.
type ReferenceDoc struct {
	ID        string
	Title     string
	Content   string
	Source    string
	CreatedAt time.Time
}
