package app

import (
	"sort"
	"time"

	"trivia-session-service/internal/domain"
)

// SessionConfig is the immutable configuration a session is created with.
type SessionConfig struct {
	HostID          string
	Topic           string
	Difficulty      string
	QuestionCount   int
	Mode            domain.Mode
	MaxParticipants int
}

// Session is one running quiz bound to exactly one tenant scope. All fields
// are mutated only while the scope's exclusive lock is held; the Registry is
// the sole entry point for that.
type Session struct {
	Scope  domain.TenantScope
	Config SessionConfig

	Questions    []domain.Question
	CurrentIndex int
	Participants map[string]*domain.ParticipantState
	Status       domain.Status

	StartedAt      time.Time
	LastActivityAt time.Time

	NeedsRecovery bool
	RestoredAt    time.Time

	questionOpenedAt time.Time
	clockGen         int
	timer            Timer
	responders       []domain.ResponderResult

	outbox         []domain.Event
	pendingSummary *domain.SessionSummary
	finalized      bool
}

func newSession(scope domain.TenantScope, cfg SessionConfig, now time.Time) *Session {
	return &Session{
		Scope:          scope,
		Config:         cfg,
		Participants:   make(map[string]*domain.ParticipantState),
		Status:         domain.StatusCreated,
		StartedAt:      now,
		LastActivityAt: now,
	}
}

// restoredSession rebuilds a session from a snapshot. The question bank is
// left empty; a resume action must re-fetch content before play continues.
// The participant cap is not snapshotted and comes from current options.
func restoredSession(snap domain.Snapshot, maxParticipants int, now time.Time) *Session {
	participants := make(map[string]*domain.ParticipantState, len(snap.Participants))
	for id, state := range snap.Participants {
		p := state
		p.AnsweredCurrentQuestion = false
		participants[id] = &p
	}
	return &Session{
		Scope: snap.Scope,
		Config: SessionConfig{
			HostID:          snap.HostID,
			Topic:           snap.Topic,
			Difficulty:      snap.Difficulty,
			QuestionCount:   snap.QuestionCount,
			Mode:            snap.Mode,
			MaxParticipants: maxParticipants,
		},
		CurrentIndex:   snap.CurrentIndex,
		Participants:   participants,
		Status:         domain.StatusRecovering,
		StartedAt:      snap.StartedAt,
		LastActivityAt: now,
		NeedsRecovery:  true,
		RestoredAt:     now,
	}
}

// queue stages an event for delivery after the scope lock is released.
// Message delivery can be slow or fail, so it never happens under the lock.
func (s *Session) queue(eventType string, payload any) {
	s.outbox = append(s.outbox, domain.Event{Type: eventType, Payload: payload})
}

func (s *Session) takeOutbox() []domain.Event {
	pending := s.outbox
	s.outbox = nil
	return pending
}

func (s *Session) takeResponders() []domain.ResponderResult {
	results := make([]domain.ResponderResult, len(s.responders))
	copy(results, s.responders)
	s.responders = s.responders[:0]
	sort.Slice(results, func(i, j int) bool {
		return results[i].ElapsedSeconds < results[j].ElapsedSeconds
	})
	return results
}

func (s *Session) currentQuestion() (domain.Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return domain.Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

func (s *Session) disarmClock() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	// Invalidate any deadline callback that already fired but has not taken
	// the scope lock yet.
	s.clockGen++
}

func (s *Session) leaderboard() []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(s.Participants))
	for id, p := range s.Participants {
		entries = append(entries, domain.LeaderboardEntry{
			ParticipantID: id,
			Points:        p.Points,
			CorrectCount:  p.CorrectCount,
			WrongCount:    p.WrongCount,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].ParticipantID < entries[j].ParticipantID
	})
	return entries
}

func (s *Session) view() domain.SessionView {
	questionCount := s.Config.QuestionCount
	if len(s.Questions) > 0 {
		questionCount = len(s.Questions)
	}
	return domain.SessionView{
		Scope:         s.Scope,
		HostID:        s.Config.HostID,
		Topic:         s.Config.Topic,
		Difficulty:    s.Config.Difficulty,
		Mode:          s.Config.Mode,
		Status:        s.Status,
		CurrentIndex:  s.CurrentIndex,
		QuestionCount: questionCount,
		NeedsRecovery: s.NeedsRecovery,
		Leaderboard:   s.leaderboard(),
	}
}

func (s *Session) snapshot(now time.Time) domain.Snapshot {
	participants := make(map[string]domain.ParticipantState, len(s.Participants))
	for id, p := range s.Participants {
		participants[id] = *p
	}
	questionCount := s.Config.QuestionCount
	if len(s.Questions) > 0 {
		questionCount = len(s.Questions)
	}
	return domain.Snapshot{
		Scope:          s.Scope,
		HostID:         s.Config.HostID,
		Topic:          s.Config.Topic,
		Difficulty:     s.Config.Difficulty,
		QuestionCount:  questionCount,
		Mode:           s.Config.Mode,
		CurrentIndex:   s.CurrentIndex,
		Participants:   participants,
		StartedAt:      s.StartedAt,
		LastActivityAt: s.LastActivityAt,
		SavedAt:        now,
	}
}

func (s *Session) summary(now time.Time) domain.SessionSummary {
	results := make([]domain.ParticipantResult, 0, len(s.Participants))
	for id, p := range s.Participants {
		results = append(results, domain.ParticipantResult{
			ParticipantID: id,
			Points:        p.Points,
			CorrectCount:  p.CorrectCount,
			WrongCount:    p.WrongCount,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Points != results[j].Points {
			return results[i].Points > results[j].Points
		}
		return results[i].ParticipantID < results[j].ParticipantID
	})
	return domain.SessionSummary{
		Scope:         s.Scope,
		HostID:        s.Config.HostID,
		Topic:         s.Config.Topic,
		Difficulty:    s.Config.Difficulty,
		QuestionCount: len(s.Questions),
		Mode:          s.Config.Mode,
		StartedAt:     s.StartedAt,
		EndedAt:       now,
		Participants:  results,
	}
}
