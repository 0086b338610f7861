package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redxsmoke/riddleofthedaydev/internal/app"
	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
	"github.com/redxsmoke/riddleofthedaydev/internal/infra/memory"
)

// flakyLedger fails the first n writes.
type flakyLedger struct {
	app.LedgerStore
	mu   sync.Mutex
	left int
}

func (f *flakyLedger) Apply(ctx context.Context, userID string, delta domain.StatDelta) (domain.UserStat, error) {
	f.mu.Lock()
	if f.left > 0 {
		f.left--
		f.mu.Unlock()
		return domain.UserStat{}, errStoreDown
	}
	f.mu.Unlock()
	return f.LedgerStore.Apply(ctx, userID, delta)
}

func TestUserLedgerOperations(t *testing.T) {
	ctx := context.Background()
	ledger := app.NewUserLedger(memory.NewLedgerStore(), zerolog.Nop(), 1, 0)

	stat, err := ledger.IncrementScore(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, stat.Score)

	stat, err = ledger.IncrementStreak(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stat.Streak)

	stat, err = ledger.AdjustScore(ctx, "u1", -10)
	require.NoError(t, err)
	assert.Equal(t, 0, stat.Score, "score clamps at zero")
	assert.Equal(t, 2, stat.Streak)

	stat, err = ledger.ResetStreak(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, stat.Streak)

	unknown, err := ledger.Get(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStat{UserID: "ghost"}, unknown)

	_, _ = ledger.Credit(ctx, "u2")
	_, _ = ledger.Credit(ctx, "u2")
	top, err := ledger.MaxScore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, top)

	all, err := ledger.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUserLedgerRetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	store := &flakyLedger{LedgerStore: memory.NewLedgerStore(), left: 2}
	ledger := app.NewUserLedger(store, zerolog.Nop(), 2, 0)

	stat, err := ledger.Credit(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStat{UserID: "u1", Score: 1, Streak: 1}, stat)
}

func TestUserLedgerGivesUpWithPersistenceError(t *testing.T) {
	ctx := context.Background()
	store := &flakyLedger{LedgerStore: memory.NewLedgerStore(), left: 10}
	ledger := app.NewUserLedger(store, zerolog.Nop(), 1, 0)

	_, err := ledger.Penalize(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, 8, store.left, "one try plus one retry")
}

func TestUserLedgerStopsRetryingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := &flakyLedger{LedgerStore: memory.NewLedgerStore(), left: 10}
	ledger := app.NewUserLedger(store, zerolog.Nop(), 5, 0)

	_, err := ledger.Credit(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, 9, store.left)
}

func TestUserLedgerZeroWaitUsesDefaultBackoff(t *testing.T) {
	ctx := context.Background()
	store := &flakyLedger{LedgerStore: memory.NewLedgerStore(), left: 1}
	ledger := app.NewUserLedger(store, zerolog.Nop(), 1, 0)

	start := time.Now()
	_, err := ledger.Credit(ctx, "u1")
	require.NoError(t, err)
	// Default 50ms with 0.5 randomization never waits less than 25ms.
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestUserLedgerCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &flakyLedger{LedgerStore: memory.NewLedgerStore(), left: 10}
	ledger := app.NewUserLedger(store, zerolog.Nop(), 5, time.Hour)

	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := ledger.Credit(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrPersistence)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 9, store.left)
}
