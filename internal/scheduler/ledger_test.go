package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerMarkIsAtMostOnce(t *testing.T) {
	ledger := NewMemoryLedger()
	entityID := uuid.New()

	won, err := ledger.Mark(context.Background(), entityID, KindDueSoon, 60)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = ledger.Mark(context.Background(), entityID, KindDueSoon, 60)
	require.NoError(t, err)
	assert.False(t, won)

	// Different offset and kind are independent boundaries.
	won, err = ledger.Mark(context.Background(), entityID, KindDueSoon, 15)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = ledger.Mark(context.Background(), entityID, KindOverdue, 60)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestMemoryLedgerMarkUnderConcurrency(t *testing.T) {
	ledger := NewMemoryLedger()
	entityID := uuid.New()

	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := ledger.Mark(context.Background(), entityID, KindDueSoon, 60)
			require.NoError(t, err)
			if won {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins, "exactly one concurrent caller claims the boundary")
}

func TestMemoryLedgerOverdueCounter(t *testing.T) {
	ledger := NewMemoryLedger()
	entityID := uuid.New()
	ctx := context.Background()

	count, err := ledger.OverdueCount(ctx, entityID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, ledger.IncrOverdue(ctx, entityID))
	require.NoError(t, ledger.IncrOverdue(ctx, entityID))

	count, err = ledger.OverdueCount(ctx, entityID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryLedgerPurgeEntity(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()
	purged, kept := uuid.New(), uuid.New()

	_, err := ledger.Mark(ctx, purged, KindDueSoon, 60)
	require.NoError(t, err)
	_, err = ledger.Mark(ctx, kept, KindDueSoon, 60)
	require.NoError(t, err)
	require.NoError(t, ledger.IncrOverdue(ctx, purged))

	require.NoError(t, ledger.PurgeEntity(ctx, purged))

	won, err := ledger.Mark(ctx, purged, KindDueSoon, 60)
	require.NoError(t, err)
	assert.True(t, won, "purged entity starts fresh")

	count, err := ledger.OverdueCount(ctx, purged)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	won, err = ledger.Mark(ctx, kept, KindDueSoon, 60)
	require.NoError(t, err)
	assert.False(t, won, "other entities keep their state")
}

func TestMemoryLedgerPurgeExpired(t *testing.T) {
	ledger := &memoryLedger{
		entries:  make(map[string]time.Time),
		counters: make(map[uuid.UUID]int),
		now:      time.Now,
	}
	ctx := context.Background()
	stale, fresh := uuid.New(), uuid.New()

	_, err := ledger.Mark(ctx, stale, KindDueSoon, 60)
	require.NoError(t, err)

	// Age the first entry past the TTL, then add a fresh one.
	ledger.mu.Lock()
	ledger.entries[dedupKey(stale, KindDueSoon, 60)] = time.Now().Add(-ledgerTTL - time.Minute)
	ledger.mu.Unlock()

	_, err = ledger.Mark(ctx, fresh, KindDueSoon, 60)
	require.NoError(t, err)

	require.NoError(t, ledger.PurgeExpired(ctx))

	won, err := ledger.Mark(ctx, stale, KindDueSoon, 60)
	require.NoError(t, err)
	assert.True(t, won, "expired entry was swept")

	won, err = ledger.Mark(ctx, fresh, KindDueSoon, 60)
	require.NoError(t, err)
	assert.False(t, won, "fresh entry survives the sweep")
}

func TestDedupKeyShape(t *testing.T) {
	entityID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.Equal(t,
		"reminder_dedup:6ba7b810-9dad-11d1-80b4-00c04fd430c8:due:60",
		dedupKey(entityID, KindDueSoon, 60))
	assert.Equal(t,
		"reminder_overdue_count:6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		counterKey(entityID))
}
