package matching

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/kalambet/preceptor/internal/catalog"
	"github.com/kalambet/preceptor/internal/storage"
)

type stubHistory struct {
	records []storage.EvaluationRecord
	err     error
	gotID   string
	gotLim  int
}

func (s *stubHistory) ListEvaluationsByStudent(studentID string, limit int) ([]storage.EvaluationRecord, error) {
	s.gotID = studentID
	s.gotLim = limit
	return s.records, s.err
}

func TestNextAssignment(t *testing.T) {
	store := &stubHistory{
		records: []storage.EvaluationRecord{
			{
				CaseType:     "Laparoscopic Appendectomy",
				Competencies: []int{40, 80, 80, 80, 80, 80, 80, 80, 80, 80, 80, 80, 80},
			},
		},
	}
	cases := []catalog.Case{
		{Name: "Laparoscopic Appendectomy", Keywords: []string{"pediatric"}},
		{Name: "Thoracotomy"},
	}
	patients := []catalog.PatientArchetype{
		{Name: "pediatric", Categories: []string{"pediatric"}},
		{Name: "baseline"},
	}

	svc := NewService(store, cases, patients)
	svc.NewRand = func() *rand.Rand { return rand.New(rand.NewSource(3)) }

	a, err := svc.NextAssignment("s-1")
	if err != nil {
		t.Fatalf("NextAssignment: %v", err)
	}
	if store.gotID != "s-1" || store.gotLim != historyWindow {
		t.Errorf("history queried with (%q, %d), want (s-1, %d)", store.gotID, store.gotLim, historyWindow)
	}
	if a.Case.Name != "Laparoscopic Appendectomy" {
		t.Errorf("assigned case %q, want the reinforcement match", a.Case.Name)
	}
	if a.Patient.Name != "pediatric" || a.Score < 10 {
		t.Errorf("assigned patient %q score %d, want the pediatric category match", a.Patient.Name, a.Score)
	}
	if a.Rationale == "" {
		t.Error("assignment has no rationale")
	}
	if len(a.Profile.WeakCompetencyHits) == 0 {
		t.Error("profile should carry the weak competency hit")
	}
}

func TestNextAssignmentStoreError(t *testing.T) {
	boom := errors.New("db closed")
	svc := NewService(&stubHistory{err: boom}, []catalog.Case{{Name: "x"}}, nil)
	if _, err := svc.NextAssignment("s-1"); !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped store error", err)
	}
}

func TestNextAssignmentEmptyCatalogs(t *testing.T) {
	svc := NewService(&stubHistory{}, nil, nil)
	if _, err := svc.NextAssignment("s-1"); !errors.Is(err, ErrNoCases) {
		t.Fatalf("got %v, want ErrNoCases", err)
	}

	svc = NewService(&stubHistory{}, []catalog.Case{{Name: "x"}}, nil)
	if _, err := svc.NextAssignment("s-1"); !errors.Is(err, ErrNoPatients) {
		t.Fatalf("got %v, want ErrNoPatients", err)
	}
}
