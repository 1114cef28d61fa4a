package http

import (
	"sync"

	"trivia-session-service/internal/domain"
)

// Hub fans session events out to every websocket subscribed to a scope. It
// implements app.Deliverer; delivery is best-effort and never blocks the
// orchestrator on a slow client.
type Hub struct {
	mu          sync.Mutex
	subscribers map[domain.TenantScope]map[chan domain.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[domain.TenantScope]map[chan domain.Event]struct{})}
}

// Deliver broadcasts one event to the scope's subscribers. A subscriber that
// cannot keep up loses its oldest undelivered event rather than blocking the
// whole scope.
func (h *Hub) Deliver(scope domain.TenantScope, event domain.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[scope] {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	return nil
}

// Subscribe registers a listener for the scope's events. The caller must
// invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(scope domain.TenantScope) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 16)

	h.mu.Lock()
	if h.subscribers[scope] == nil {
		h.subscribers[scope] = make(map[chan domain.Event]struct{})
	}
	h.subscribers[scope][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		scoped, ok := h.subscribers[scope]
		if !ok {
			return
		}
		if _, ok := scoped[ch]; ok {
			delete(scoped, ch)
			close(ch)
		}
		if len(scoped) == 0 {
			delete(h.subscribers, scope)
		}
	}
	return ch, cancel
}
