package app

import (
	"context"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

// RiddleRepository abstracts how riddles are stored (in-memory, SQLite, Postgres).
// Insert must reject a second riddle with the same QuestionKey with domain.ErrDuplicateRiddle.
type RiddleRepository interface {
	Insert(ctx context.Context, riddle domain.Riddle) (domain.Riddle, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (domain.Riddle, error)
	List(ctx context.Context) ([]domain.Riddle, error)
	MarkConsumed(ctx context.Context, id int64) error
	ResetConsumed(ctx context.Context) error
}

// LedgerStore persists user stats. Apply is one atomic read-modify-write per user:
// concurrent calls for the same user compose, calls for different users do not block each other.
type LedgerStore interface {
	Apply(ctx context.Context, userID string, delta domain.StatDelta) (domain.UserStat, error)
	Get(ctx context.Context, userID string) (domain.UserStat, error)
	List(ctx context.Context) ([]domain.UserStat, error)
	Top(ctx context.Context, n int) ([]domain.UserStat, error)
}

// Notifier is the outbound chat adapter. Calls are fire-and-forget: implementations
// handle their own delivery failures and must not block for long.
type Notifier interface {
	RoundAnnounced(ctx context.Context)
	RoundOpened(ctx context.Context, opened domain.RoundOpened)
	RoundRevealed(ctx context.Context, summary domain.RevealSummary)
	NoWinners(ctx context.Context, riddle domain.Riddle)
	GuessResult(ctx context.Context, result domain.GuessResult)
	PoolExhausted(ctx context.Context)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) RoundAnnounced(context.Context)                     {}
func (NopNotifier) RoundOpened(context.Context, domain.RoundOpened)     {}
func (NopNotifier) RoundRevealed(context.Context, domain.RevealSummary) {}
func (NopNotifier) NoWinners(context.Context, domain.Riddle)            {}
func (NopNotifier) GuessResult(context.Context, domain.GuessResult)     {}
func (NopNotifier) PoolExhausted(context.Context)                       {}

// MultiNotifier fans events out to several adapters in order.
type MultiNotifier []Notifier

func (m MultiNotifier) RoundAnnounced(ctx context.Context) {
	for _, n := range m {
		n.RoundAnnounced(ctx)
	}
}

func (m MultiNotifier) RoundOpened(ctx context.Context, opened domain.RoundOpened) {
	for _, n := range m {
		n.RoundOpened(ctx, opened)
	}
}

func (m MultiNotifier) RoundRevealed(ctx context.Context, summary domain.RevealSummary) {
	for _, n := range m {
		n.RoundRevealed(ctx, summary)
	}
}

func (m MultiNotifier) NoWinners(ctx context.Context, riddle domain.Riddle) {
	for _, n := range m {
		n.NoWinners(ctx, riddle)
	}
}

func (m MultiNotifier) GuessResult(ctx context.Context, result domain.GuessResult) {
	for _, n := range m {
		n.GuessResult(ctx, result)
	}
}

func (m MultiNotifier) PoolExhausted(ctx context.Context) {
	for _, n := range m {
		n.PoolExhausted(ctx)
	}
}
