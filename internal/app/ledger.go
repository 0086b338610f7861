package app

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

const (
	defaultLedgerRetries = 2
	defaultRetryBackoff  = 50 * time.Millisecond
)

// UserLedger exposes the score/streak operations on top of a LedgerStore.
// Every operation is a single atomic store write; failed writes are retried and then
// reported as domain.ErrPersistence with the user's prior state left untouched.
type UserLedger struct {
	store   LedgerStore
	log     zerolog.Logger
	retries int
	wait    time.Duration
}

// NewUserLedger wraps store. retries below 1 and a non-positive wait fall back to the defaults.
func NewUserLedger(store LedgerStore, logger zerolog.Logger, retries int, wait time.Duration) *UserLedger {
	if retries < 1 {
		retries = defaultLedgerRetries
	}
	if wait <= 0 {
		wait = defaultRetryBackoff
	}
	return &UserLedger{store: store, log: logger, retries: retries, wait: wait}
}

func (l *UserLedger) IncrementScore(ctx context.Context, userID string, delta int) (domain.UserStat, error) {
	return l.apply(ctx, userID, domain.StatDelta{Score: delta})
}

// AdjustScore applies a possibly negative delta; the score is clamped at zero.
func (l *UserLedger) AdjustScore(ctx context.Context, userID string, delta int) (domain.UserStat, error) {
	return l.apply(ctx, userID, domain.StatDelta{Score: delta})
}

func (l *UserLedger) IncrementStreak(ctx context.Context, userID string, delta int) (domain.UserStat, error) {
	return l.apply(ctx, userID, domain.StatDelta{Streak: delta})
}

func (l *UserLedger) ResetStreak(ctx context.Context, userID string) (domain.UserStat, error) {
	return l.apply(ctx, userID, domain.StatDelta{ResetStreak: true})
}

// Credit adds one point and one streak day in a single write.
func (l *UserLedger) Credit(ctx context.Context, userID string) (domain.UserStat, error) {
	return l.apply(ctx, userID, domain.StatDelta{Score: 1, Streak: 1})
}

// Penalize removes one point (clamped) and resets the streak in a single write.
func (l *UserLedger) Penalize(ctx context.Context, userID string) (domain.UserStat, error) {
	return l.apply(ctx, userID, domain.StatDelta{Score: -1, ResetStreak: true})
}

// Get returns the user's stat, zero-valued if the user was never recorded.
func (l *UserLedger) Get(ctx context.Context, userID string) (domain.UserStat, error) {
	stat, err := l.store.Get(ctx, userID)
	if err != nil {
		return domain.UserStat{UserID: userID}, persistenceError("get stat", err)
	}
	return stat, nil
}

// TopN returns the n best users ordered by score desc, streak desc.
func (l *UserLedger) TopN(ctx context.Context, n int) ([]domain.UserStat, error) {
	stats, err := l.store.Top(ctx, n)
	if err != nil {
		return nil, persistenceError("top stats", err)
	}
	return stats, nil
}

// All returns every recorded user.
func (l *UserLedger) All(ctx context.Context) ([]domain.UserStat, error) {
	stats, err := l.store.List(ctx)
	if err != nil {
		return nil, persistenceError("list stats", err)
	}
	return stats, nil
}

// MaxScore is the highest score on the ledger, 0 when empty.
func (l *UserLedger) MaxScore(ctx context.Context) (int, error) {
	top, err := l.TopN(ctx, 1)
	if err != nil {
		return 0, err
	}
	if len(top) == 0 {
		return 0, nil
	}
	return top[0].Score, nil
}

func (l *UserLedger) apply(ctx context.Context, userID string, delta domain.StatDelta) (domain.UserStat, error) {
	var stat domain.UserStat
	attempt := 0
	op := func() error {
		attempt++
		var err error
		stat, err = l.store.Apply(ctx, userID, delta)
		return err
	}
	notify := func(err error, wait time.Duration) {
		l.log.Warn().Err(err).Str("user_id", userID).Int("attempt", attempt).Dur("retry_in", wait).Msg("ledger write failed")
	}

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(l.policy(), uint64(l.retries)), ctx), notify)
	if err == nil {
		return stat, nil
	}
	l.log.Error().Err(err).
		Bool("alert", true).
		Str("user_id", userID).
		Int("attempts", attempt).
		Int("score_delta", delta.Score).
		Int("streak_delta", delta.Streak).
		Bool("reset_streak", delta.ResetStreak).
		Msg("ledger write abandoned")
	return domain.UserStat{}, persistenceError("ledger apply", err)
}

// policy doubles the wait after each failed write, starting at the configured backoff.
func (l *UserLedger) policy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.wait
	b.MaxInterval = 16 * l.wait
	b.MaxElapsedTime = 0
	return b
}
