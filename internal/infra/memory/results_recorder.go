package memory

import (
	"context"
	"log"
	"sync"

	"trivia-session-service/internal/domain"
)

// ResultsRecorder keeps completed-session summaries in memory. Used when no
// Postgres URL is configured, and by tests that assert on recorded results.
type ResultsRecorder struct {
	mu        sync.Mutex
	summaries []domain.SessionSummary
}

func NewResultsRecorder() *ResultsRecorder {
	return &ResultsRecorder{}
}

func (r *ResultsRecorder) RecordResults(_ context.Context, summary domain.SessionSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, summary)
	log.Printf("session %s: recorded results for %d participants", summary.Scope, len(summary.Participants))
	return nil
}

// Summaries returns a copy of everything recorded so far.
func (r *ResultsRecorder) Summaries() []domain.SessionSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SessionSummary, len(r.summaries))
	copy(out, r.summaries)
	return out
}
