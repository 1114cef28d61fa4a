package app

import (
	"sync"

	"trivia-session-service/internal/domain"
)

// scopeEntry pairs a session with its exclusive lock. The registry map lock
// covers membership only; all session-body mutation happens under this
// per-scope mutex so one slow session never blocks unrelated scopes.
type scopeEntry struct {
	mu      sync.Mutex
	session *Session
}

// Registry is the single source of truth for which tenant scopes have a live
// session. Events staged by a session during a locked mutation are handed to
// the deliver callback after the lock is released.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.TenantScope]*scopeEntry
	deliver func(domain.TenantScope, domain.Event)
}

func NewRegistry(deliver func(domain.TenantScope, domain.Event)) *Registry {
	if deliver == nil {
		deliver = func(domain.TenantScope, domain.Event) {}
	}
	return &Registry{
		entries: make(map[domain.TenantScope]*scopeEntry),
		deliver: deliver,
	}
}

// Create atomically inserts a new session at the scope. Exactly one of any
// set of concurrent Create calls for the same scope succeeds; the rest get
// ErrAlreadyActive.
func (r *Registry) Create(scope domain.TenantScope, build func() *Session) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[scope]; ok {
		return nil, domain.ErrAlreadyActive
	}
	session := build()
	r.entries[scope] = &scopeEntry{session: session}
	return session, nil
}

// Contains is a non-blocking membership check; it never waits on an
// in-progress session mutation.
func (r *Registry) Contains(scope domain.TenantScope) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[scope]
	return ok
}

// Scopes returns the currently tracked scopes. Callers iterate and take each
// scope's lock individually; the registry lock is never held across slow work.
func (r *Registry) Scopes() []domain.TenantScope {
	r.mu.RLock()
	defer r.mu.RUnlock()
	scopes := make([]domain.TenantScope, 0, len(r.entries))
	for scope := range r.entries {
		scopes = append(scopes, scope)
	}
	return scopes
}

// WithSession runs fn with exclusive access to the scope's session. The lock
// is released on every exit path, then any events the mutation staged are
// delivered outside the critical section.
func (r *Registry) WithSession(scope domain.TenantScope, fn func(*Session) error) error {
	r.mu.RLock()
	entry, ok := r.entries[scope]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	var pending []domain.Event
	err := func() error {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		// Re-check: the session may have been removed while we waited.
		if entry.session == nil {
			return domain.ErrSessionNotFound
		}
		err := fn(entry.session)
		pending = entry.session.takeOutbox()
		return err
	}()

	for _, event := range pending {
		r.deliver(scope, event)
	}
	return err
}

// Remove drops the scope from the registry and detaches its session so that
// late lock holders observe the removal. Returns false if nothing was there.
func (r *Registry) Remove(scope domain.TenantScope) bool {
	r.mu.Lock()
	entry, ok := r.entries[scope]
	delete(r.entries, scope)
	r.mu.Unlock()
	if !ok {
		return false
	}

	entry.mu.Lock()
	had := entry.session != nil
	entry.session = nil
	entry.mu.Unlock()
	return had
}
