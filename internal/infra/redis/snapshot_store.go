package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"trivia-session-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "quiz:snapshot:"

// SnapshotStore persists session snapshots as JSON values in Redis, one key
// per tenant scope. A TTL bounds how long an abandoned snapshot can linger
// after a crash.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(snap.Scope), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) LoadSnapshots(ctx context.Context) ([]domain.Snapshot, error) {
	var snaps []domain.Snapshot
	iter := s.client.Scan(ctx, 0, snapshotKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue // expired between scan and get
			}
			return nil, fmt.Errorf("load snapshot %s: %w", iter.Val(), err)
		}
		var snap domain.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			log.Printf("discarding unreadable snapshot %s: %v", iter.Val(), err)
			continue
		}
		snaps = append(snaps, snap)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	return snaps, nil
}

func (s *SnapshotStore) DeleteSnapshot(ctx context.Context, scope domain.TenantScope) error {
	if err := s.client.Del(ctx, s.key(scope)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) key(scope domain.TenantScope) string {
	return snapshotKeyPrefix + scope.CommunityID + ":" + scope.ChannelID
}
