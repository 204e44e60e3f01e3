// Package api exposes the evaluation engine over HTTP (chi) and MCP. The
// engine itself lives in the internal evaluation/history/matching packages;
// this layer only decodes requests, maps domain errors, and encodes results.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/preceptor/internal/evaluation"
	"github.com/kalambet/preceptor/internal/grounding"
	"github.com/kalambet/preceptor/internal/history"
	"github.com/kalambet/preceptor/internal/matching"
	"github.com/kalambet/preceptor/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// AppDeps holds the wired services behind the HTTP surface.
type AppDeps struct {
	Store       *storage.Store
	Evaluations *evaluation.Service
	Assignments *matching.Service
	Resolver    *grounding.Resolver
	Token       string
}

// NewAppHandler builds the bearer-authed application router. /health stays
// unauthenticated for liveness probes.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/evaluations", handleCreateEvaluation(deps))
		r.Get("/evaluations/{id}", handleGetEvaluation(deps))
		r.Get("/students", handleListStudents(deps))
		r.Get("/students/{id}/evaluations", handleListEvaluations(deps))
		r.Get("/students/{id}/profile", handleStruggleProfile(deps))
		r.Post("/assignments", handleCreateAssignment(deps))
		r.Post("/grounding/resolve", handleResolveGrounding(deps))
		r.Post("/reference-docs", handleSaveReferenceDoc(deps))
	})

	return r
}

type createEvaluationRequest struct {
	StudentID  string `json:"student_id"`
	CaseType   string `json:"case_type"`
	Comments   string `json:"comments"`
	FocusAreas string `json:"focus_areas"`
}

type evaluationResponse struct {
	ID                string  `json:"id"`
	StudentID         string  `json:"student_id"`
	CaseType          string  `json:"case_type"`
	Competencies      []int   `json:"ac_scores"`
	Behaviors         []int   `json:"pc_scores"`
	Comments          string  `json:"comments,omitempty"`
	FocusAreas        string  `json:"focus_areas,omitempty"`
	PerformanceLevel  string  `json:"performance_level"`
	CompetencyAvg     float64 `json:"competency_avg"`
	BehaviorAvg       float64 `json:"behavior_avg"`
	BehaviorUndefined bool    `json:"behavior_undefined,omitempty"`
	CompletionDate    string  `json:"completion_date"`
}

func handleCreateEvaluation(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req createEvaluationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.StudentID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "student_id is required")
			return
		}

		record, result, err := deps.Evaluations.Create(evaluation.CreateParams{
			StudentID:  req.StudentID,
			CaseType:   req.CaseType,
			Comments:   req.Comments,
			FocusAreas: req.FocusAreas,
		})
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "unknown student %q", req.StudentID)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "creating evaluation: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(evaluationResponse{
			ID:                record.ID,
			StudentID:         record.StudentID,
			CaseType:          record.CaseType,
			Competencies:      record.Competencies,
			Behaviors:         record.Behaviors,
			Comments:          record.Comments,
			FocusAreas:        record.FocusAreas,
			PerformanceLevel:  record.PerformanceLevel,
			CompetencyAvg:     result.CompetencyAvg,
			BehaviorAvg:       result.BehaviorAvg,
			BehaviorUndefined: result.BehaviorUndefined,
			CompletionDate:    record.CompletionDate.Format(time.RFC3339),
		})
	}
}

func handleGetEvaluation(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		record, err := deps.Store.GetEvaluation(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "evaluation %q not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "fetching evaluation: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(record)
	}
}

func handleListStudents(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		students, err := deps.Store.ListStudents()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing students: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(students)
	}
}

func handleListEvaluations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := chi.URLParam(r, "id")
		limit := parseIntParam(r, "limit", 10, 100)

		records, err := deps.Store.ListEvaluationsByStudent(studentID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing evaluations: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	}
}

// handleStruggleProfile exposes the mined profile for diagnostics. The
// profile is rebuilt per request and never stored.
func handleStruggleProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := chi.URLParam(r, "id")

		records, err := deps.Store.ListEvaluationsByStudent(studentID, 10)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading history: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(history.Mine(records))
	}
}

type assignmentRequest struct {
	StudentID string `json:"student_id"`
}

func handleCreateAssignment(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req assignmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.StudentID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "student_id is required")
			return
		}

		assignment, err := deps.Assignments.NextAssignment(req.StudentID)
		if errors.Is(err, matching.ErrNoCases) || errors.Is(err, matching.ErrNoPatients) {
			httpError(w, http.StatusServiceUnavailable, "catalog_empty_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "creating assignment: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(assignment)
	}
}

type groundingRequest struct {
	Query string `json:"query"`
}

func handleResolveGrounding(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req groundingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		passages, err := deps.Resolver.Resolve(r.Context(), req.Query)
		var unavailable *grounding.ContentUnavailableError
		if errors.As(err, &unavailable) {
			httpError(w, http.StatusServiceUnavailable, "content_unavailable_error", "%v", unavailable)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "resolving content: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"passages": passages})
	}
}

type referenceDocRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

func handleSaveReferenceDoc(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req referenceDocRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}
		if req.Source == "" {
			req.Source = "api"
		}

		doc := storage.ReferenceDoc{
			ID:        uuid.New().String(),
			Title:     req.Title,
			Content:   req.Content,
			Source:    req.Source,
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.SaveReferenceDoc(doc); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving reference doc: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": doc.ID})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
