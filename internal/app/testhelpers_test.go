package app_test

import (
	"context"
	"sync"
	"time"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
)

// manualScheduler drives question deadlines deterministically: Advance moves
// the clock and fires every timer whose deadline it passes, in order.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	sched    *manualScheduler
	deadline time.Time
	fn       func()
	done     bool
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{now: time.Unix(1700000000, 0)}
}

func (m *manualScheduler) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualScheduler) AfterFunc(d time.Duration, fn func()) app.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	timer := &manualTimer{sched: m, deadline: m.now.Add(d), fn: fn}
	m.timers = append(m.timers, timer)
	return timer
}

func (t *manualTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves the clock by d. Timers fire outside the scheduler lock so
// callbacks may arm new timers.
func (m *manualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	for {
		var next *manualTimer
		for _, timer := range m.timers {
			if timer.done || timer.deadline.After(target) {
				continue
			}
			if next == nil || timer.deadline.Before(next.deadline) {
				next = timer
			}
		}
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		next.done = true
		if next.deadline.After(m.now) {
			m.now = next.deadline
		}
		fn := next.fn
		m.mu.Unlock()
		fn()
		m.mu.Lock()
	}
}

// recordingDeliverer captures every event the orchestrator emits.
type recordingDeliverer struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingDeliverer) Deliver(_ domain.TenantScope, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingDeliverer) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, event := range r.events {
		types[i] = event.Type
	}
	return types
}

func (r *recordingDeliverer) countType(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, event := range r.events {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

// stubSource returns a fixed question batch and counts generation calls.
type stubSource struct {
	mu        sync.Mutex
	questions []domain.Question
	err       error
	calls     int
}

func (s *stubSource) GenerateQuestions(_ context.Context, _, _ string, _ int) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.questions, nil
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func trueFalseQuestions(n, timeoutSeconds int) []domain.Question {
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{
			Kind:           domain.KindTrueFalse,
			Text:           "Statement holds.",
			CorrectAnswer:  "true",
			TimeoutSeconds: timeoutSeconds,
		}
	}
	return questions
}

func testScope() domain.TenantScope {
	return domain.TenantScope{CommunityID: "community-1", ChannelID: "channel-1"}
}
