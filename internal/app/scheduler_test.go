package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

func TestOnOpenTimeSkipsWhileActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, _, _ = f.service.SubmitRiddle(ctx, "One?", "1", "")
	_, _, _ = f.service.SubmitRiddle(ctx, "Two?", "2", "")

	opened, err := f.service.Scheduler().OnOpenTime(ctx)
	require.NoError(t, err)
	require.True(t, opened)
	first := f.service.Round().ID

	opened, err = f.service.Scheduler().OnOpenTime(ctx)
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Equal(t, first, f.service.Round().ID)
	assert.Len(t, f.notifier.opened, 1)

	opened0 := f.notifier.opened[0]
	assert.Equal(t, 1, opened0.Unused)
	assert.True(t, opened0.LowSupply)
	assert.Equal(t, testStart.Add(4*time.Hour), opened0.RevealAt)
}

func TestOnOpenTimeEmptyPoolNotifies(t *testing.T) {
	f := newFixture()
	opened, err := f.service.Scheduler().OnOpenTime(context.Background())
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Equal(t, 1, f.notifier.exhausted)
	assert.Equal(t, domain.PhaseIdle, f.service.Round().Phase)
}

func TestDuplicateRevealFiresOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, _ = f.service.AddPoint(ctx, "C")
	f.openRound(ctx, "What has keys but can't open locks?", "piano", "A")
	for i := 0; i < domain.MaxAttempts; i++ {
		_, _ = f.service.Guess(ctx, "B", "organ")
	}

	_, revealed := f.service.Scheduler().OnRevealTime(ctx)
	require.True(t, revealed)
	_, revealed = f.service.Scheduler().OnRevealTime(ctx)
	require.False(t, revealed)

	assert.Len(t, f.notifier.revealed, 1)
	assert.Len(t, f.notifier.noWinners, 1)
	assert.Equal(t, 1, f.stats.penaltiesFor("B"))
	assert.Equal(t, domain.PhaseIdle, f.service.Round().Phase)
}

func TestSchedulerCyclesDays(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	for i := 0; i < 3; i++ {
		_, _, err := f.service.SubmitRiddle(ctx, fmt.Sprintf("Riddle %d?", i), "answer", "")
		require.NoError(t, err)
	}

	seen := make(map[int64]bool)
	for day := 0; day < 3; day++ {
		f.service.Scheduler().OnAnnounceTime(ctx)
		opened, err := f.service.Scheduler().OnOpenTime(ctx)
		require.NoError(t, err)
		require.True(t, opened)
		seen[f.service.Round().Riddle.ID] = true
		_, revealed := f.service.Scheduler().OnRevealTime(ctx)
		require.True(t, revealed)
		f.clock.Advance(24 * time.Hour)
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, 3, f.notifier.announced)
}

// Reveal racing a burst of correct guesses: every guess either lands before the sweep and is
// reported with its final stat, or is ignored and its user swept.
func TestRevealWaitsForInflightGuesses(t *testing.T) {
	const players = 20
	for iter := 0; iter < 30; iter++ {
		ctx := context.Background()
		f := newFixture()
		for i := 0; i < players; i++ {
			_, err := f.service.AddPoint(ctx, fmt.Sprintf("u%d", i))
			require.NoError(t, err)
		}
		f.openRound(ctx, "What has a thumb and four fingers but is not alive?", "glove", "A")

		outcomes := make([]domain.GuessOutcome, players)
		var (
			summary  domain.RevealSummary
			revealed bool
			wg       sync.WaitGroup
		)
		start := make(chan struct{})
		for i := 0; i < players; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				res, _ := f.service.Guess(ctx, fmt.Sprintf("u%d", i), "a glove")
				outcomes[i] = res.Outcome
			}(i)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			summary, revealed = f.service.Scheduler().OnRevealTime(ctx)
		}()
		close(start)
		wg.Wait()

		require.True(t, revealed)
		winners := make(map[string]domain.Winner, len(summary.Winners))
		for _, w := range summary.Winners {
			winners[w.UserID] = w
		}
		swept := make(map[string]bool, len(summary.StreaksReset))
		for _, userID := range summary.StreaksReset {
			swept[userID] = true
		}

		for i, outcome := range outcomes {
			userID := fmt.Sprintf("u%d", i)
			stat, err := f.service.Stats(ctx, userID)
			require.NoError(t, err)
			switch outcome {
			case domain.OutcomeCorrect:
				w, ok := winners[userID]
				require.True(t, ok, "iter %d: %s solved but is not a winner", iter, userID)
				assert.False(t, swept[userID], "iter %d: %s solved but was swept", iter, userID)
				assert.Equal(t, 2, w.Score, "iter %d: winner stat read before credit landed", iter)
				assert.Equal(t, 2, w.Streak)
				assert.Equal(t, 2, stat.Streak)
			case domain.OutcomeIgnored:
				assert.NotContains(t, winners, userID)
				assert.True(t, swept[userID], "iter %d: %s missed the round but kept the streak", iter, userID)
				assert.Equal(t, 0, stat.Streak)
			default:
				t.Fatalf("iter %d: unexpected outcome %v for %s", iter, outcome, userID)
			}
		}
		assert.Len(t, summary.Winners, players-len(summary.StreaksReset))
		assert.NotContains(t, swept, "A")
		assert.Equal(t, domain.PhaseIdle, f.service.Round().Phase)
	}
}
