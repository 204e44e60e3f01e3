package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kalambet/preceptor/internal/catalog"
	"github.com/kalambet/preceptor/internal/classify"
	"github.com/kalambet/preceptor/internal/evaluation"
	"github.com/kalambet/preceptor/internal/grounding"
	"github.com/kalambet/preceptor/internal/matching"
	"github.com/kalambet/preceptor/internal/scoring"
	"github.com/kalambet/preceptor/internal/storage"
)

const testToken = "test-token"

type testEnv struct {
	store  *storage.Store
	server *httptest.Server
}

func newTestEnv(t *testing.T, cases []catalog.Case, patients []catalog.PatientArchetype, providers ...grounding.Provider) *testEnv {
	t.Helper()

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	evals, err := evaluation.NewService(store, scoring.DefaultTables(), classify.DefaultMatrix())
	if err != nil {
		t.Fatalf("building evaluation service: %v", err)
	}
	evals.NewRand = func() *rand.Rand { return rand.New(rand.NewSource(17)) }

	assignments := matching.NewService(store, cases, patients)
	assignments.NewRand = func() *rand.Rand { return rand.New(rand.NewSource(17)) }

	handler := NewAppHandler(AppDeps{
		Store:       store,
		Evaluations: evals,
		Assignments: assignments,
		Resolver:    grounding.NewResolver(time.Second, providers...),
		Token:       testToken,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testEnv{store: store, server: srv}
}

func (e *testEnv) request(t *testing.T, method, path string, body any, auth bool) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestHealthUnauthenticated(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp := env.request(t, http.MethodGet, "/health", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp := env.request(t, http.MethodGet, "/students", nil, false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}
}

func TestCreateEvaluation(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	if err := env.store.UpsertStudent(storage.StudentRow{ID: "s-1", Name: "Ann", ClassStanding: 2}); err != nil {
		t.Fatalf("seeding student: %v", err)
	}

	resp := env.request(t, http.MethodPost, "/evaluations",
		map[string]string{"student_id": "s-1", "case_type": "appendectomy"}, true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var got struct {
		ID               string `json:"id"`
		Competencies     []int  `json:"ac_scores"`
		Behaviors        []int  `json:"pc_scores"`
		PerformanceLevel string `json:"performance_level"`
	}
	decodeBody(t, resp, &got)

	if got.ID == "" || got.PerformanceLevel == "" {
		t.Errorf("incomplete response: %+v", got)
	}
	if len(got.Competencies) != scoring.NumCompetencies || len(got.Behaviors) != scoring.NumBehaviors {
		t.Errorf("score counts: %d/%d", len(got.Competencies), len(got.Behaviors))
	}

	// The record is readable back through the API.
	resp = env.request(t, http.MethodGet, "/evaluations/"+got.ID, nil, true)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get evaluation status = %d, want 200", resp.StatusCode)
	}
}

func TestCreateEvaluationUnknownStudent(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp := env.request(t, http.MethodPost, "/evaluations",
		map[string]string{"student_id": "nobody"}, true)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	var got struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	decodeBody(t, resp, &got)
	if got.Error.Type != "not_found_error" {
		t.Errorf("error type = %q", got.Error.Type)
	}
}

func TestCreateEvaluationMissingStudentID(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp := env.request(t, http.MethodPost, "/evaluations", map[string]string{}, true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStruggleProfileEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	if err := env.store.SaveEvaluation(storage.EvaluationRecord{
		ID:             "e-1",
		StudentID:      "s-1",
		CaseType:       "hernia repair",
		Competencies:   []int{40},
		FocusAreas:     "suturing; knot tying",
		CompletionDate: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seeding evaluation: %v", err)
	}

	resp := env.request(t, http.MethodGet, "/students/s-1/profile", nil, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got struct {
		RecentCases []string `json:"recent_cases"`
		Keywords    []string `json:"struggling_keywords"`
	}
	decodeBody(t, resp, &got)
	if len(got.RecentCases) != 1 || got.RecentCases[0] != "hernia repair" {
		t.Errorf("recent cases = %v", got.RecentCases)
	}
	if len(got.Keywords) != 2 {
		t.Errorf("struggling keywords = %v", got.Keywords)
	}
}

func TestCreateAssignment(t *testing.T) {
	cases := []catalog.Case{{Name: "Appendectomy", Keywords: []string{"abdominal"}}}
	patients := []catalog.PatientArchetype{{Name: "baseline", Comorbidities: []string{"none"}}}
	env := newTestEnv(t, cases, patients)

	resp := env.request(t, http.MethodPost, "/assignments", map[string]string{"student_id": "s-1"}, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got struct {
		Case      catalog.Case `json:"case"`
		Rationale string       `json:"rationale"`
	}
	decodeBody(t, resp, &got)
	if got.Case.Name != "Appendectomy" || got.Rationale == "" {
		t.Errorf("assignment = %+v", got)
	}
}

func TestCreateAssignmentEmptyCatalog(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp := env.request(t, http.MethodPost, "/assignments", map[string]string{"student_id": "s-1"}, true)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}

	var got struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	decodeBody(t, resp, &got)
	if got.Error.Type != "catalog_empty_error" {
		t.Errorf("error type = %q", got.Error.Type)
	}
}

type staticTestProvider struct {
	passages []grounding.Passage
}

func (p *staticTestProvider) Name() string { return "static-test" }

func (p *staticTestProvider) Fetch(ctx context.Context, query string) ([]grounding.Passage, error) {
	if len(p.passages) == 0 {
		return nil, errors.New("no content")
	}
	return p.passages, nil
}

func TestResolveGrounding(t *testing.T) {
	provider := &staticTestProvider{passages: []grounding.Passage{{Source: "static-test", Title: "Suturing", Text: "technique"}}}
	env := newTestEnv(t, nil, nil, provider)

	resp := env.request(t, http.MethodPost, "/grounding/resolve", map[string]string{"query": "suturing"}, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got struct {
		Passages []grounding.Passage `json:"passages"`
	}
	decodeBody(t, resp, &got)
	if len(got.Passages) != 1 || got.Passages[0].Title != "Suturing" {
		t.Errorf("passages = %+v", got.Passages)
	}
}

func TestResolveGroundingUnavailable(t *testing.T) {
	env := newTestEnv(t, nil, nil, &staticTestProvider{})

	resp := env.request(t, http.MethodPost, "/grounding/resolve", map[string]string{"query": "anything"}, true)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}

	var got struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeBody(t, resp, &got)
	if got.Error.Type != "content_unavailable_error" {
		t.Errorf("error type = %q", got.Error.Type)
	}
}

func TestSaveReferenceDoc(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp := env.request(t, http.MethodPost, "/reference-docs",
		map[string]string{"title": "Knots", "content": "square knot basics"}, true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	docs, err := env.store.SearchReferenceDocs([]string{"square"}, 5)
	if err != nil {
		t.Fatalf("SearchReferenceDocs: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "Knots" {
		t.Errorf("stored docs = %+v", docs)
	}
}

func TestListEvaluationsLimit(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := env.store.SaveEvaluation(storage.EvaluationRecord{
			ID:             string(rune('a' + i)),
			StudentID:      "s-1",
			CompletionDate: base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("seeding evaluation %d: %v", i, err)
		}
	}

	resp := env.request(t, http.MethodGet, "/students/s-1/evaluations?limit=2", nil, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got []storage.EvaluationRecord
	decodeBody(t, resp, &got)
	if len(got) != 2 {
		t.Errorf("got %d records, want limit of 2", len(got))
	}
}
