package memory

import (
	"context"
	"sync"

	"trivia-session-service/internal/domain"
)

// SnapshotStore is an in-memory implementation of app.SnapshotStore. It does
// not survive a restart; it exists for tests and single-process dev runs.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[domain.TenantScope]domain.Snapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[domain.TenantScope]domain.Snapshot)}
}

func (s *SnapshotStore) SaveSnapshot(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.Scope] = snap
	return nil
}

func (s *SnapshotStore) LoadSnapshots(_ context.Context) ([]domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snaps := make([]domain.Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (s *SnapshotStore) DeleteSnapshot(_ context.Context, scope domain.TenantScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, scope)
	return nil
}
