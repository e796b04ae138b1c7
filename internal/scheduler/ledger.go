package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Reminder kinds used in ledger keys.
const (
	KindDueSoon = "due"
	KindOverdue = "overdue"
)

const ledgerTTL = 24 * time.Hour

// overdue counters outlive dedup entries so the per-entity cap holds across
// the whole after-due offset range (up to one week).
const counterTTL = 8 * 24 * time.Hour

// DedupLedger guarantees at-most-once reminder emission per (entity, kind,
// offset). Mark is an atomic check-then-mark; under concurrent scans exactly
// one caller wins.
type DedupLedger interface {
	Mark(ctx context.Context, entityID uuid.UUID, kind string, offsetMinutes int) (bool, error)
	OverdueCount(ctx context.Context, entityID uuid.UUID) (int, error)
	IncrOverdue(ctx context.Context, entityID uuid.UUID) error
	// PurgeEntity clears all state for an entity, so a completed task's id
	// never inherits stale reminder state.
	PurgeEntity(ctx context.Context, entityID uuid.UUID) error
	// PurgeExpired drops entries older than the ledger TTL. Redis handles
	// this via key expiry; the in-memory ledger sweeps on the cleanup pass.
	PurgeExpired(ctx context.Context) error
}

// --- Redis-backed ledger ---

type redisLedger struct {
	client  *redis.Client
	offsets []offsetKey
}

type offsetKey struct {
	kind   string
	offset int
}

// NewRedisLedger stores dedup entries as SETNX keys with a 24h TTL. The
// configured offsets are kept so PurgeEntity can delete exact keys without a
// SCAN.
func NewRedisLedger(client *redis.Client, beforeOffsets, afterOffsets []int) DedupLedger {
	l := &redisLedger{client: client}
	for _, o := range beforeOffsets {
		l.offsets = append(l.offsets, offsetKey{KindDueSoon, o})
	}
	for _, o := range afterOffsets {
		l.offsets = append(l.offsets, offsetKey{KindOverdue, o})
	}
	return l
}

func dedupKey(entityID uuid.UUID, kind string, offsetMinutes int) string {
	return fmt.Sprintf("reminder_dedup:%s:%s:%d", entityID.String(), kind, offsetMinutes)
}

func counterKey(entityID uuid.UUID) string {
	return fmt.Sprintf("reminder_overdue_count:%s", entityID.String())
}

func (l *redisLedger) Mark(ctx context.Context, entityID uuid.UUID, kind string, offsetMinutes int) (bool, error) {
	key := dedupKey(entityID, kind, offsetMinutes)
	won, err := l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ledgerTTL).Result()
	if err != nil {
		return false, fmt.Errorf("ledger mark: %w", err)
	}
	return won, nil
}

func (l *redisLedger) OverdueCount(ctx context.Context, entityID uuid.UUID) (int, error) {
	val, err := l.client.Get(ctx, counterKey(entityID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(val)
}

func (l *redisLedger) IncrOverdue(ctx context.Context, entityID uuid.UUID) error {
	key := counterKey(entityID)
	if err := l.client.Incr(ctx, key).Err(); err != nil {
		return err
	}
	return l.client.Expire(ctx, key, counterTTL).Err()
}

func (l *redisLedger) PurgeEntity(ctx context.Context, entityID uuid.UUID) error {
	keys := make([]string, 0, len(l.offsets)+1)
	for _, o := range l.offsets {
		keys = append(keys, dedupKey(entityID, o.kind, o.offset))
	}
	keys = append(keys, counterKey(entityID))
	return l.client.Del(ctx, keys...).Err()
}

func (l *redisLedger) PurgeExpired(ctx context.Context) error {
	// Redis key TTLs already expire entries.
	return nil
}

// --- In-memory ledger ---

// memoryLedger is the local-only fallback used when Redis is absent, and in
// tests. A single mutex guards both maps; Mark stays check-then-mark atomic.
type memoryLedger struct {
	mu       sync.Mutex
	entries  map[string]time.Time
	counters map[uuid.UUID]int
	now      func() time.Time
}

func NewMemoryLedger() DedupLedger {
	return &memoryLedger{
		entries:  make(map[string]time.Time),
		counters: make(map[uuid.UUID]int),
		now:      time.Now,
	}
}

func (l *memoryLedger) Mark(_ context.Context, entityID uuid.UUID, kind string, offsetMinutes int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := dedupKey(entityID, kind, offsetMinutes)
	if _, exists := l.entries[key]; exists {
		return false, nil
	}
	l.entries[key] = l.now()
	return true, nil
}

func (l *memoryLedger) OverdueCount(_ context.Context, entityID uuid.UUID) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counters[entityID], nil
}

func (l *memoryLedger) IncrOverdue(_ context.Context, entityID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counters[entityID]++
	return nil
}

func (l *memoryLedger) PurgeEntity(_ context.Context, entityID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := fmt.Sprintf("reminder_dedup:%s:", entityID.String())
	for key := range l.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(l.entries, key)
		}
	}
	delete(l.counters, entityID)
	return nil
}

func (l *memoryLedger) PurgeExpired(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-ledgerTTL)
	for key, at := range l.entries {
		if at.Before(cutoff) {
			delete(l.entries, key)
		}
	}
	return nil
}
