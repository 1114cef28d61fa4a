// Package app contains the live-session orchestrator: the registry of active
// quiz sessions, the per-session state machine, answer collection, and the
// snapshot/recovery path. Question content, message delivery, and result
// persistence are consumed through the interfaces below.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/scoring"
)

// QuestionSource supplies an ordered question batch for a topic/difficulty.
type QuestionSource interface {
	GenerateQuestions(ctx context.Context, topic, difficulty string, count int) ([]domain.Question, error)
}

// Deliverer pushes session events to participants. Delivery is best-effort;
// failures are logged and never change session state.
type Deliverer interface {
	Deliver(scope domain.TenantScope, event domain.Event) error
}

// SnapshotStore persists partial session state across restarts.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap domain.Snapshot) error
	LoadSnapshots(ctx context.Context) ([]domain.Snapshot, error)
	DeleteSnapshot(ctx context.Context, scope domain.TenantScope) error
}

// ResultsRecorder receives the final summary of a completed session.
type ResultsRecorder interface {
	RecordResults(ctx context.Context, summary domain.SessionSummary) error
}

// Options tunes orchestrator behavior. Zero values fall back to defaults.
type Options struct {
	GenerationTimeout time.Duration
	MaxIdle           time.Duration
	SweepInterval     time.Duration
	RecoveryGrace     time.Duration
	SnapshotInterval  time.Duration
	MaxParticipants   int
	Scheduler         Scheduler
}

func (o Options) withDefaults() Options {
	if o.GenerationTimeout <= 0 {
		o.GenerationTimeout = 30 * time.Second
	}
	if o.MaxIdle <= 0 {
		o.MaxIdle = 30 * time.Minute
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 5 * time.Minute
	}
	if o.RecoveryGrace <= 0 {
		o.RecoveryGrace = 60 * time.Second
	}
	if o.SnapshotInterval <= 0 {
		o.SnapshotInterval = time.Minute
	}
	if o.MaxParticipants <= 0 {
		o.MaxParticipants = 20
	}
	if o.Scheduler == nil {
		o.Scheduler = NewScheduler()
	}
	return o
}

// Orchestrator drives every live session. Many sessions run concurrently,
// one per tenant scope; within a scope all mutation is serialized by the
// registry's per-scope lock.
type Orchestrator struct {
	registry  *Registry
	source    QuestionSource
	deliverer Deliverer
	snapshots SnapshotStore
	results   ResultsRecorder
	opts      Options
	sched     Scheduler
}

func NewOrchestrator(source QuestionSource, deliverer Deliverer, snapshots SnapshotStore, results ResultsRecorder, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	o := &Orchestrator{
		source:    source,
		deliverer: deliverer,
		snapshots: snapshots,
		results:   results,
		opts:      opts,
		sched:     opts.Scheduler,
	}
	o.registry = NewRegistry(o.deliverEvent)
	return o
}

// Registry exposes the underlying registry for infrastructure wiring.
func (o *Orchestrator) Registry() *Registry { return o.registry }

func (o *Orchestrator) deliverEvent(scope domain.TenantScope, event domain.Event) {
	if err := o.deliverer.Deliver(scope, event); err != nil {
		log.Printf("session %s: delivery of %q failed: %v", scope, event.Type, err)
	}
}

// StartSession creates a session at the scope and begins the first question.
// Fails with domain.ErrAlreadyActive when the scope is occupied and with
// domain.ErrGenerationFailed when the question source fails or times out.
func (o *Orchestrator) StartSession(ctx context.Context, scope domain.TenantScope, hostID, topic, difficulty string, questionCount int, mode domain.Mode) (domain.SessionView, error) {
	cfg := SessionConfig{
		HostID:          hostID,
		Topic:           topic,
		Difficulty:      difficulty,
		QuestionCount:   questionCount,
		Mode:            mode,
		MaxParticipants: o.opts.MaxParticipants,
	}
	if _, err := o.registry.Create(scope, func() *Session {
		return newSession(scope, cfg, o.sched.Now())
	}); err != nil {
		return domain.SessionView{}, err
	}

	// Fetch content outside any lock; the scope is already reserved so
	// concurrent starts fail fast while generation runs.
	genCtx, cancel := context.WithTimeout(ctx, o.opts.GenerationTimeout)
	defer cancel()
	questions, err := o.source.GenerateQuestions(genCtx, topic, difficulty, questionCount)
	if err == nil && len(questions) == 0 {
		err = errors.New("source returned no questions")
	}
	if err != nil {
		o.abort(scope, "question generation failed")
		return domain.SessionView{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	var view domain.SessionView
	err = o.withSession(scope, func(s *Session) error {
		if s.Status != domain.StatusCreated {
			return o.transitionError(s, "start")
		}
		s.Questions = questions
		s.CurrentIndex = 0
		s.StartedAt = o.sched.Now()
		if err := o.openQuestionLocked(s); err != nil {
			return err
		}
		view = s.view()
		return nil
	})
	if err != nil {
		return domain.SessionView{}, err
	}
	return view, nil
}

// SubmitAnswer records a participant's answer for the currently open
// question. Duplicate submissions and submissions outside an open window are
// rejected without mutation.
func (o *Orchestrator) SubmitAnswer(scope domain.TenantScope, participantID, answer string) (domain.Outcome, error) {
	var outcome domain.Outcome
	err := o.withSession(scope, func(s *Session) error {
		if s.Status != domain.StatusQuestionOpen {
			return nil
		}
		participant, ok := s.Participants[participantID]
		if !ok {
			if len(s.Participants) >= s.Config.MaxParticipants {
				return nil
			}
			participant = &domain.ParticipantState{}
			s.Participants[participantID] = participant
		}
		if participant.AnsweredCurrentQuestion {
			// Retried client request; counted once, not an error.
			return nil
		}
		question, ok := s.currentQuestion()
		if !ok {
			return o.transitionError(s, "submit")
		}

		now := o.sched.Now()
		elapsed := now.Sub(s.questionOpenedAt).Seconds()
		correct, points, streak := scoring.Score(question, answer, elapsed, float64(question.TimeoutSeconds), participant.CurrentStreak)

		participant.AnsweredCurrentQuestion = true
		s.LastActivityAt = now
		if correct {
			participant.Points += points
			participant.CorrectCount++
			participant.CurrentStreak = streak
		} else {
			participant.WrongCount++
			participant.CurrentStreak = 0
		}
		s.responders = append(s.responders, domain.ResponderResult{
			ParticipantID:  participantID,
			Correct:        correct,
			PointsAwarded:  points,
			ElapsedSeconds: elapsed,
		})
		outcome = domain.Outcome{Accepted: true, Correct: correct, PointsAwarded: points}

		// First correct answer wins in single-answer mode: the question
		// closes before any queued submission for this scope is processed.
		if correct && s.Config.Mode == domain.ModeSingleAnswer {
			outcome.ClosedQuestion = true
			return o.closeQuestionLocked(s)
		}
		return nil
	})
	return outcome, err
}

// StopSession aborts the session at the scope. Returns false when no session
// existed.
func (o *Orchestrator) StopSession(scope domain.TenantScope) bool {
	return o.abort(scope, "stopped by host")
}

// GetSessionSnapshot returns a read-only view for display.
func (o *Orchestrator) GetSessionSnapshot(scope domain.TenantScope) (domain.SessionView, bool) {
	var view domain.SessionView
	err := o.registry.WithSession(scope, func(s *Session) error {
		view = s.view()
		return nil
	})
	return view, err == nil
}

// SweepIdle force-ends sessions whose last activity is older than maxIdle.
// Each scope's lock is taken individually; message delivery happens outside
// the registry lock so a slow channel cannot stall unrelated scopes.
func (o *Orchestrator) SweepIdle(maxIdle time.Duration) {
	for _, scope := range o.registry.Scopes() {
		var stale bool
		err := o.withSession(scope, func(s *Session) error {
			if s.Status.Terminal() {
				stale = true
				return nil
			}
			if s.Status == domain.StatusRecovering {
				// Recovery grace handles these separately.
				return nil
			}
			if o.sched.Now().Sub(s.LastActivityAt) <= maxIdle {
				return nil
			}
			log.Printf("session %s: idle for over %s, ending", scope, maxIdle)
			s.queue(domain.EventIdleTimeout, domain.AbortNotice{Reason: "session ended after inactivity"})
			return o.abortLocked(s, "idle timeout")
		})
		if err != nil {
			continue
		}
		if stale {
			// Terminal sessions normally leave the registry on finalize;
			// clean up if one slipped through.
			o.registry.Remove(scope)
		}
	}
}

// RunMaintenance drives the periodic idle sweep, recovery grace check, and
// snapshot loop until ctx is canceled.
func (o *Orchestrator) RunMaintenance(ctx context.Context) {
	sweep := time.NewTicker(o.opts.SweepInterval)
	defer sweep.Stop()
	recovery := time.NewTicker(o.opts.RecoveryGrace)
	defer recovery.Stop()
	snapshot := time.NewTicker(o.opts.SnapshotInterval)
	defer snapshot.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			o.SweepIdle(o.opts.MaxIdle)
		case <-recovery.C:
			o.SweepRecovering(o.opts.RecoveryGrace)
		case <-snapshot.C:
			if err := o.SnapshotSessions(ctx); err != nil {
				log.Printf("periodic snapshot failed: %v", err)
			}
		}
	}
}

// withSession wraps the registry mutation path with terminal-state
// finalization and the invariant-violation guard. A session that reaches a
// terminal status is removed from the registry and, on completion, its
// summary goes to the results sink.
func (o *Orchestrator) withSession(scope domain.TenantScope, fn func(*Session) error) error {
	var summary *domain.SessionSummary
	var finalize bool
	err := o.registry.WithSession(scope, func(s *Session) error {
		err := fn(s)
		if s.Status.Terminal() && !s.finalized {
			s.finalized = true
			finalize = true
			summary = s.pendingSummary
		}
		return err
	})
	if finalize {
		o.finishSession(scope, summary)
	}
	if errors.Is(err, domain.ErrInvalidTransition) {
		// Bug guard: never crash the process, never corrupt other scopes.
		o.abort(scope, "internal error")
	}
	return err
}

func (o *Orchestrator) finishSession(scope domain.TenantScope, summary *domain.SessionSummary) {
	o.registry.Remove(scope)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.snapshots.DeleteSnapshot(ctx, scope); err != nil {
		log.Printf("session %s: snapshot cleanup failed: %v", scope, err)
	}
	if summary != nil {
		if err := o.results.RecordResults(ctx, *summary); err != nil {
			log.Printf("session %s: recording results failed: %v", scope, err)
		}
	}
}

// openQuestionLocked delivers the current question and arms its deadline.
// Caller holds the scope lock.
func (o *Orchestrator) openQuestionLocked(s *Session) error {
	switch s.Status {
	case domain.StatusCreated, domain.StatusScoring, domain.StatusRecovering:
	default:
		return o.transitionError(s, "open question")
	}
	question, ok := s.currentQuestion()
	if !ok {
		return o.transitionError(s, "open question")
	}

	for _, p := range s.Participants {
		p.AnsweredCurrentQuestion = false
	}
	s.responders = s.responders[:0]

	now := o.sched.Now()
	s.Status = domain.StatusQuestionOpen
	s.questionOpenedAt = now
	s.LastActivityAt = now
	s.queue(domain.EventQuestion, domain.QuestionPrompt{
		Index:          s.CurrentIndex + 1,
		Total:          len(s.Questions),
		Kind:           question.Kind,
		Text:           question.Text,
		Options:        question.Options,
		TimeoutSeconds: question.TimeoutSeconds,
	})

	// The generation counter makes the deadline callback and any early close
	// mutually exclusive: whichever runs first disarms the other.
	s.clockGen++
	gen := s.clockGen
	scope := s.Scope
	s.timer = o.sched.AfterFunc(time.Duration(question.TimeoutSeconds)*time.Second, func() {
		o.onDeadline(scope, gen)
	})
	return nil
}

// onDeadline is the clock callback for an open question's timeout.
func (o *Orchestrator) onDeadline(scope domain.TenantScope, gen int) {
	err := o.withSession(scope, func(s *Session) error {
		if s.Status != domain.StatusQuestionOpen || s.clockGen != gen {
			// An early close or abort beat the deadline.
			return nil
		}
		return o.closeQuestionLocked(s)
	})
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		log.Printf("session %s: deadline close failed: %v", scope, err)
	}
}

// closeQuestionLocked finalizes the open question, delivers its result, and
// either advances to the next question or completes the session. Caller
// holds the scope lock.
func (o *Orchestrator) closeQuestionLocked(s *Session) error {
	if s.Status != domain.StatusQuestionOpen {
		return o.transitionError(s, "close question")
	}
	s.disarmClock()
	s.Status = domain.StatusScoring

	for _, p := range s.Participants {
		if !p.AnsweredCurrentQuestion {
			p.WrongCount++
			p.CurrentStreak = 0
		}
	}

	question, _ := s.currentQuestion()
	s.queue(domain.EventQuestionResult, domain.QuestionResult{
		Index:         s.CurrentIndex + 1,
		CorrectAnswer: question.CorrectAnswer,
		Explanation:   question.Explanation,
		Responders:    s.takeResponders(),
		Leaderboard:   s.leaderboard(),
	})

	s.CurrentIndex++
	s.LastActivityAt = o.sched.Now()
	if s.CurrentIndex == len(s.Questions) {
		o.completeLocked(s)
		return nil
	}
	return o.openQuestionLocked(s)
}

func (o *Orchestrator) completeLocked(s *Session) {
	s.Status = domain.StatusCompleted
	summary := s.summary(o.sched.Now())
	s.pendingSummary = &summary
	s.queue(domain.EventCompleted, summary)
}

// abort force-ends the session at the scope. Safe to call on terminal or
// missing sessions; returns whether a live session was found.
func (o *Orchestrator) abort(scope domain.TenantScope, reason string) bool {
	err := o.withSession(scope, func(s *Session) error {
		return o.abortLocked(s, reason)
	})
	return err == nil
}

// abortLocked is idempotent: aborting an already-terminal session is a no-op.
func (o *Orchestrator) abortLocked(s *Session, reason string) error {
	if s.Status.Terminal() {
		return nil
	}
	s.disarmClock()
	s.Status = domain.StatusAborted
	s.queue(domain.EventAborted, domain.AbortNotice{Reason: reason})
	return nil
}

// transitionError logs the violation with session context and returns the
// bug-guard error that forces an abort of this session only.
func (o *Orchestrator) transitionError(s *Session, op string) error {
	log.Printf("session %s: refusing %s in status %q (index %d/%d)",
		s.Scope, op, s.Status, s.CurrentIndex, len(s.Questions))
	return fmt.Errorf("%w: %s in status %q", domain.ErrInvalidTransition, op, s.Status)
}
