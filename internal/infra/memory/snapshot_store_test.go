package memory

import (
	"context"
	"testing"

	"trivia-session-service/internal/domain"
)

func TestSnapshotStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore()
	scope := domain.TenantScope{CommunityID: "c1", ChannelID: "ch1"}

	if err := store.SaveSnapshot(ctx, domain.Snapshot{Scope: scope, CurrentIndex: 2}); err != nil {
		t.Fatalf("save: %v", err)
	}

	snaps, err := store.LoadSnapshots(ctx)
	if err != nil || len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d (%v)", len(snaps), err)
	}
	if snaps[0].Scope != scope || snaps[0].CurrentIndex != 2 {
		t.Fatalf("unexpected snapshot: %+v", snaps[0])
	}

	if err := store.DeleteSnapshot(ctx, scope); err != nil {
		t.Fatalf("delete: %v", err)
	}
	snaps, _ = store.LoadSnapshots(ctx)
	if len(snaps) != 0 {
		t.Fatalf("expected empty store after delete, got %d", len(snaps))
	}
}
