package app_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/redxsmoke/riddleofthedaydev/internal/app"
	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
	"github.com/redxsmoke/riddleofthedaydev/internal/infra/memory"
	"github.com/redxsmoke/riddleofthedaydev/internal/testutil"
)

var errStoreDown = errors.New("store down")

var testStart = time.Date(2026, 10, 18, 19, 0, 0, 0, time.UTC)

type fixture struct {
	riddles  *memory.RiddleRepository
	stats    *countingLedger
	notifier *recordingNotifier
	clock    *testutil.Clock
	service  *app.ContestService
}

func newFixture() *fixture {
	f := &fixture{
		riddles:  memory.NewRiddleRepository(),
		stats:    &countingLedger{LedgerStore: memory.NewLedgerStore()},
		notifier: &recordingNotifier{},
		clock:    testutil.NewClock(testStart),
	}
	logger := zerolog.Nop()
	f.service = app.NewContestService(f.riddles, f.stats, app.Options{
		Notifier:      f.notifier,
		Logger:        &logger,
		Now:           f.clock.Now,
		LedgerRetries: 1,
	})
	return f
}

// openRound submits a riddle as submitter and opens it.
func (f *fixture) openRound(ctx context.Context, question, answer, submitter string) domain.Riddle {
	riddle, _, err := f.service.SubmitRiddle(ctx, question, answer, submitter)
	if err != nil {
		panic(err)
	}
	opened, err := f.service.Scheduler().OnOpenTime(ctx)
	if err != nil || !opened {
		panic("round did not open")
	}
	return riddle
}

// countingLedger wraps a store, counts penalties and can be switched into failure mode.
type countingLedger struct {
	app.LedgerStore

	mu        sync.Mutex
	penalties map[string]int
	failing   bool
	applies   int
}

func (c *countingLedger) Apply(ctx context.Context, userID string, delta domain.StatDelta) (domain.UserStat, error) {
	c.mu.Lock()
	c.applies++
	if c.failing {
		c.mu.Unlock()
		return domain.UserStat{}, errStoreDown
	}
	if delta.Score < 0 && delta.ResetStreak {
		if c.penalties == nil {
			c.penalties = make(map[string]int)
		}
		c.penalties[userID]++
	}
	c.mu.Unlock()
	return c.LedgerStore.Apply(ctx, userID, delta)
}

func (c *countingLedger) setFailing(v bool) {
	c.mu.Lock()
	c.failing = v
	c.mu.Unlock()
}

func (c *countingLedger) penaltiesFor(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.penalties[userID]
}

func (c *countingLedger) applyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applies
}

type recordingNotifier struct {
	mu        sync.Mutex
	announced int
	opened    []domain.RoundOpened
	revealed  []domain.RevealSummary
	noWinners []domain.Riddle
	guesses   []domain.GuessResult
	exhausted int
}

func (n *recordingNotifier) RoundAnnounced(context.Context) {
	n.mu.Lock()
	n.announced++
	n.mu.Unlock()
}

func (n *recordingNotifier) RoundOpened(_ context.Context, opened domain.RoundOpened) {
	n.mu.Lock()
	n.opened = append(n.opened, opened)
	n.mu.Unlock()
}

func (n *recordingNotifier) RoundRevealed(_ context.Context, summary domain.RevealSummary) {
	n.mu.Lock()
	n.revealed = append(n.revealed, summary)
	n.mu.Unlock()
}

func (n *recordingNotifier) NoWinners(_ context.Context, riddle domain.Riddle) {
	n.mu.Lock()
	n.noWinners = append(n.noWinners, riddle)
	n.mu.Unlock()
}

func (n *recordingNotifier) GuessResult(_ context.Context, result domain.GuessResult) {
	n.mu.Lock()
	n.guesses = append(n.guesses, result)
	n.mu.Unlock()
}

func (n *recordingNotifier) PoolExhausted(context.Context) {
	n.mu.Lock()
	n.exhausted++
	n.mu.Unlock()
}
