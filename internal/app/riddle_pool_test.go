package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redxsmoke/riddleofthedaydev/internal/app"
	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
	"github.com/redxsmoke/riddleofthedaydev/internal/infra/memory"
)

func TestDrawNextCoversPoolBeforeRepeating(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRiddleRepository()
	pool := app.NewRiddlePool(repo)
	for i := 0; i < 5; i++ {
		_, err := pool.Submit(ctx, fmt.Sprintf("Riddle number %d?", i), "answer", "")
		require.NoError(t, err)
	}

	for cycle := 0; cycle < 3; cycle++ {
		seen := make(map[int64]bool)
		for i := 0; i < 5; i++ {
			r, err := pool.DrawNext(ctx)
			require.NoError(t, err)
			require.False(t, seen[r.ID], "riddle %d drawn twice in cycle %d", r.ID, cycle)
			seen[r.ID] = true
		}
		assert.Len(t, seen, 5)
	}
}

func TestDrawNextSkipsLastAfterReset(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRiddleRepository()
	pool := app.NewRiddlePool(repo)
	_, _ = pool.Submit(ctx, "One?", "1", "")
	_, _ = pool.Submit(ctx, "Two?", "2", "")

	for i := 0; i < 20; i++ {
		first, err := pool.DrawNext(ctx)
		require.NoError(t, err)
		second, err := pool.DrawNext(ctx)
		require.NoError(t, err)
		require.NotEqual(t, first.ID, second.ID)
		third, err := pool.DrawNext(ctx)
		require.NoError(t, err)
		require.NotEqual(t, second.ID, third.ID, "reset must not repeat the last riddle")
		// drain so the next iteration starts from a reset
		_, err = pool.DrawNext(ctx)
		require.NoError(t, err)
	}
}

func TestDrawNextSingleRiddleRepeats(t *testing.T) {
	ctx := context.Background()
	pool := app.NewRiddlePool(memory.NewRiddleRepository())
	only, _ := pool.Submit(ctx, "Only?", "yes", "")

	for i := 0; i < 3; i++ {
		r, err := pool.DrawNext(ctx)
		require.NoError(t, err)
		assert.Equal(t, only.ID, r.ID)
	}
}

func TestDrawNextEmptyPool(t *testing.T) {
	pool := app.NewRiddlePool(memory.NewRiddleRepository())
	if _, err := pool.DrawNext(context.Background()); !errors.Is(err, domain.ErrPoolEmpty) {
		t.Fatalf("expected ErrPoolEmpty, got %v", err)
	}
}

func TestDrawNextPersistsConsumedFlag(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRiddleRepository()
	pool := app.NewRiddlePool(repo)
	_, _ = pool.Submit(ctx, "One?", "1", "")
	_, _ = pool.Submit(ctx, "Two?", "2", "")

	drawn, err := pool.DrawNext(ctx)
	require.NoError(t, err)
	stored, err := repo.Get(ctx, drawn.ID)
	require.NoError(t, err)
	assert.True(t, stored.Consumed)

	unused, err := pool.Unused(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, unused)
}

func TestSubmitWrapsStoreFailures(t *testing.T) {
	pool := app.NewRiddlePool(brokenRiddles{})
	_, err := pool.Submit(context.Background(), "Q?", "a", "u1")
	require.ErrorIs(t, err, domain.ErrPersistence)
	require.ErrorIs(t, err, errStoreDown)

	_, err = pool.DrawNext(context.Background())
	require.ErrorIs(t, err, domain.ErrPersistence)
}

type brokenRiddles struct{}

func (brokenRiddles) Insert(context.Context, domain.Riddle) (domain.Riddle, error) {
	return domain.Riddle{}, errStoreDown
}
func (brokenRiddles) Delete(context.Context, int64) error { return errStoreDown }
func (brokenRiddles) Get(context.Context, int64) (domain.Riddle, error) {
	return domain.Riddle{}, errStoreDown
}
func (brokenRiddles) List(context.Context) ([]domain.Riddle, error) { return nil, errStoreDown }
func (brokenRiddles) MarkConsumed(context.Context, int64) error     { return errStoreDown }
func (brokenRiddles) ResetConsumed(context.Context) error           { return errStoreDown }
