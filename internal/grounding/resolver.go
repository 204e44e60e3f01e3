// Package grounding resolves reference content for narrative generation via
// an ordered fallback chain of providers.
//
// The chain is strictly sequential per request with a bounded timeout per
// attempt. When every provider fails or comes back empty, the resolver
// surfaces a typed error carrying the original query; callers must never
// substitute fabricated content for a failed resolution.
package grounding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Passage is one retrieved grounding fragment.
type Passage struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	Text   string `json:"text"`
}

// Provider is one content source in the fallback chain.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, query string) ([]Passage, error)
}

// ContentUnavailableError reports exhaustion of the fallback chain. It keeps
// the original query and what each provider reported.
type ContentUnavailableError struct {
	Query    string
	Attempts []string
}

func (e *ContentUnavailableError) Error() string {
	return fmt.Sprintf("content unavailable for query %q: %s", e.Query, strings.Join(e.Attempts, "; "))
}

const defaultAttemptTimeout = 5 * time.Second

// Resolver walks providers in order until one returns content.
type Resolver struct {
	providers      []Provider
	attemptTimeout time.Duration
}

// NewResolver creates a Resolver. attemptTimeout bounds each provider call;
// zero or negative selects the default.
func NewResolver(attemptTimeout time.Duration, providers ...Provider) *Resolver {
	if attemptTimeout <= 0 {
		attemptTimeout = defaultAttemptTimeout
	}
	return &Resolver{providers: providers, attemptTimeout: attemptTimeout}
}

// Resolve tries each provider once, in order, and returns the first non-empty
// result. An empty result counts as a failed attempt. There are no retries.
func (r *Resolver) Resolve(ctx context.Context, query string) ([]Passage, error) {
	requestID := uuid.New().String()
	var attempts []string

	for _, p := range r.providers {
		attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
		passages, err := p.Fetch(attemptCtx, query)
		cancel()

		switch {
		case err != nil:
			slog.Warn("grounding provider failed", "request", requestID, "provider", p.Name(), "error", err)
			attempts = append(attempts, fmt.Sprintf("%s: %v", p.Name(), err))
		case len(passages) == 0:
			slog.Debug("grounding provider returned nothing", "request", requestID, "provider", p.Name())
			attempts = append(attempts, p.Name()+": empty result")
		default:
			return passages, nil
		}

		if ctx.Err() != nil {
			attempts = append(attempts, "request cancelled")
			break
		}
	}

	return nil, &ContentUnavailableError{Query: query, Attempts: attempts}
}
