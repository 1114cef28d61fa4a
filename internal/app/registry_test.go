package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"trivia-session-service/internal/domain"
)

func TestCreateIsExclusivePerScope(t *testing.T) {
	registry := NewRegistry(nil)
	scope := domain.TenantScope{CommunityID: "c1", ChannelID: "ch1"}

	const attempts = 32
	var wg sync.WaitGroup
	created := make(chan struct{}, attempts)
	rejected := make(chan struct{}, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := registry.Create(scope, func() *Session {
				return newSession(scope, SessionConfig{}, time.Now())
			})
			switch {
			case err == nil:
				created <- struct{}{}
			case errors.Is(err, domain.ErrAlreadyActive):
				rejected <- struct{}{}
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(created) != 1 {
		t.Fatalf("expected exactly 1 successful create, got %d", len(created))
	}
	if len(rejected) != attempts-1 {
		t.Fatalf("expected %d rejections, got %d", attempts-1, len(rejected))
	}
}

func TestScopesWithSharedChannelDoNotCollide(t *testing.T) {
	registry := NewRegistry(nil)
	a := domain.TenantScope{CommunityID: "c1", ChannelID: "general"}
	b := domain.TenantScope{CommunityID: "c2", ChannelID: "general"}

	for _, scope := range []domain.TenantScope{a, b} {
		scope := scope
		if _, err := registry.Create(scope, func() *Session {
			return newSession(scope, SessionConfig{}, time.Now())
		}); err != nil {
			t.Fatalf("create %s: %v", scope, err)
		}
	}

	if !registry.Contains(a) || !registry.Contains(b) {
		t.Fatalf("expected both scopes present")
	}
}

func TestWithSessionMissingScope(t *testing.T) {
	registry := NewRegistry(nil)
	err := registry.WithSession(domain.TenantScope{CommunityID: "c", ChannelID: "ch"}, func(*Session) error {
		t.Fatalf("fn must not run for a missing scope")
		return nil
	})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestWithSessionDeliversOutboxAfterUnlock(t *testing.T) {
	var delivered []domain.Event
	registry := NewRegistry(func(_ domain.TenantScope, event domain.Event) {
		delivered = append(delivered, event)
	})
	scope := domain.TenantScope{CommunityID: "c", ChannelID: "ch"}
	if _, err := registry.Create(scope, func() *Session {
		return newSession(scope, SessionConfig{}, time.Now())
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := registry.WithSession(scope, func(s *Session) error {
		s.queue("first", nil)
		s.queue("second", nil)
		return nil
	})
	if err != nil {
		t.Fatalf("with session: %v", err)
	}
	if len(delivered) != 2 || delivered[0].Type != "first" || delivered[1].Type != "second" {
		t.Fatalf("expected ordered delivery of staged events, got %+v", delivered)
	}
}

func TestWithSessionReleasesLockOnPanic(t *testing.T) {
	registry := NewRegistry(nil)
	scope := domain.TenantScope{CommunityID: "c", ChannelID: "ch"}
	if _, err := registry.Create(scope, func() *Session {
		return newSession(scope, SessionConfig{}, time.Now())
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	func() {
		defer func() { recover() }()
		_ = registry.WithSession(scope, func(*Session) error {
			panic("boom")
		})
	}()

	// A held lock would deadlock here.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = registry.WithSession(scope, func(*Session) error { return nil })
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("scope lock was not released after panic")
	}
}

func TestRemove(t *testing.T) {
	registry := NewRegistry(nil)
	scope := domain.TenantScope{CommunityID: "c", ChannelID: "ch"}
	if _, err := registry.Create(scope, func() *Session {
		return newSession(scope, SessionConfig{}, time.Now())
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if !registry.Remove(scope) {
		t.Fatalf("expected removal of live session")
	}
	if registry.Contains(scope) {
		t.Fatalf("expected scope gone after removal")
	}
	if registry.Remove(scope) {
		t.Fatalf("expected second removal to report nothing there")
	}
}
