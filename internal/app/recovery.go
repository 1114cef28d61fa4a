package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"trivia-session-service/internal/domain"
)

// SnapshotSessions serializes every non-terminal session to the snapshot
// store. Snapshots are built under each scope's lock; the store writes happen
// afterwards so slow storage never blocks live play.
func (o *Orchestrator) SnapshotSessions(ctx context.Context) error {
	var snaps []domain.Snapshot
	for _, scope := range o.registry.Scopes() {
		_ = o.registry.WithSession(scope, func(s *Session) error {
			if s.Status.Terminal() {
				return nil
			}
			snaps = append(snaps, s.snapshot(o.sched.Now()))
			return nil
		})
	}

	var lastErr error
	for _, snap := range snaps {
		if err := o.snapshots.SaveSnapshot(ctx, snap); err != nil {
			log.Printf("session %s: snapshot save failed: %v", snap.Scope, err)
			lastErr = err
		}
	}
	return lastErr
}

// RestoreSessions loads snapshots on startup and registers each one as a
// Recovering session with an empty question bank. Play does not resume until
// ResumeSession or DiscardSession is called; sessions left in Recovering past
// the grace period are auto-aborted by SweepRecovering.
func (o *Orchestrator) RestoreSessions(ctx context.Context) (int, error) {
	snaps, err := o.snapshots.LoadSnapshots(ctx)
	if err != nil {
		return 0, fmt.Errorf("load snapshots: %w", err)
	}

	restored := 0
	for _, snap := range snaps {
		snap := snap
		if _, err := o.registry.Create(snap.Scope, func() *Session {
			return restoredSession(snap, o.opts.MaxParticipants, o.sched.Now())
		}); err != nil {
			log.Printf("session %s: skipping snapshot, scope already occupied", snap.Scope)
			continue
		}
		restored++
	}
	return restored, nil
}

// ResumeSession re-fetches questions for a recovered session and resumes play
// at the snapshotted index. The stale question bank is never trusted across a
// restart; regenerating content is cheaper and safer.
func (o *Orchestrator) ResumeSession(ctx context.Context, scope domain.TenantScope) error {
	var cfg SessionConfig
	if err := o.registry.WithSession(scope, func(s *Session) error {
		if s.Status != domain.StatusRecovering {
			return domain.ErrNotRecovering
		}
		cfg = s.Config
		return nil
	}); err != nil {
		return err
	}

	genCtx, cancel := context.WithTimeout(ctx, o.opts.GenerationTimeout)
	defer cancel()
	questions, err := o.source.GenerateQuestions(genCtx, cfg.Topic, cfg.Difficulty, cfg.QuestionCount)
	if err == nil && len(questions) == 0 {
		err = errors.New("source returned no questions")
	}
	if err != nil {
		o.abort(scope, "question generation failed")
		return fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	return o.withSession(scope, func(s *Session) error {
		if s.Status != domain.StatusRecovering {
			return domain.ErrNotRecovering
		}
		s.Questions = questions
		s.NeedsRecovery = false
		if s.CurrentIndex >= len(s.Questions) {
			// The snapshot was taken at the finish line; wrap up instead of
			// replaying anything.
			o.completeLocked(s)
			return nil
		}
		return o.openQuestionLocked(s)
	})
}

// DiscardSession aborts a recovered session instead of resuming it.
func (o *Orchestrator) DiscardSession(scope domain.TenantScope) bool {
	return o.abort(scope, "recovered session discarded")
}

// SweepRecovering auto-aborts sessions that stayed in Recovering longer than
// the grace period after restore.
func (o *Orchestrator) SweepRecovering(grace time.Duration) {
	for _, scope := range o.registry.Scopes() {
		_ = o.withSession(scope, func(s *Session) error {
			if s.Status != domain.StatusRecovering {
				return nil
			}
			if o.sched.Now().Sub(s.RestoredAt) <= grace {
				return nil
			}
			log.Printf("session %s: %v after %s, aborting", scope, domain.ErrRecoveryTimeout, grace)
			return o.abortLocked(s, "recovery timed out")
		})
	}
}
