package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

const defaultLowSupplyThreshold = 5

// RoundScheduler turns time-of-day ticks into round transitions. Its hooks are mutually
// exclusive and safe to fire repeatedly: idempotence comes from the RoundState phase guards.
type RoundScheduler struct {
	pool     *RiddlePool
	state    *RoundState
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time

	// revealAt computes the reveal deadline for a round opened at the given time.
	revealAt  func(time.Time) time.Time
	lowSupply int

	mu sync.Mutex
}

// SchedulerConfig tunes a RoundScheduler. Zero values fall back to defaults.
type SchedulerConfig struct {
	Now                func() time.Time
	RevealAt           func(openedAt time.Time) time.Time
	LowSupplyThreshold int
}

func NewRoundScheduler(pool *RiddlePool, state *RoundState, notifier Notifier, logger zerolog.Logger, cfg SchedulerConfig) *RoundScheduler {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RevealAt == nil {
		cfg.RevealAt = func(openedAt time.Time) time.Time { return openedAt.Add(4 * time.Hour) }
	}
	if cfg.LowSupplyThreshold <= 0 {
		cfg.LowSupplyThreshold = defaultLowSupplyThreshold
	}
	return &RoundScheduler{
		pool:      pool,
		state:     state,
		notifier:  notifier,
		log:       logger,
		now:       cfg.Now,
		revealAt:  cfg.RevealAt,
		lowSupply: cfg.LowSupplyThreshold,
	}
}

// OnAnnounceTime publishes the "next riddle soon" notice. No state changes.
func (s *RoundScheduler) OnAnnounceTime(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier.RoundAnnounced(ctx)
}

// OnOpenTime draws the next riddle and opens a round. It skips (opened=false, nil error) when a
// round is still active or the pool is empty; the latter raises a PoolExhausted notification.
func (s *RoundScheduler) OnOpenTime(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if phase := s.state.Phase(); phase != domain.PhaseIdle {
		s.log.Info().Stringer("phase", phase).Msg("open skipped: previous round still active")
		return false, nil
	}

	riddle, err := s.pool.DrawNext(ctx)
	if errors.Is(err, domain.ErrPoolEmpty) {
		s.log.Warn().Msg("open skipped: riddle pool exhausted")
		s.notifier.PoolExhausted(ctx)
		return false, nil
	}
	if err != nil {
		s.log.Error().Err(err).Bool("alert", true).Msg("draw riddle")
		return false, err
	}

	openedAt := s.now()
	snap, err := s.state.OpenRound(riddle, s.revealAt(openedAt))
	if errors.Is(err, domain.ErrRoundAlreadyActive) {
		s.log.Info().Msg("open skipped: round already active")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	unused, err := s.pool.Unused(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("count unused riddles")
	}
	s.notifier.RoundOpened(ctx, domain.RoundOpened{
		RoundID:   snap.ID,
		Riddle:    riddle,
		Unused:    unused,
		LowSupply: err == nil && unused < s.lowSupply,
		RevealAt:  snap.RevealAt,
	})
	return true, nil
}

// OnRevealTime closes the open round, publishes the reveal and returns to idle.
// revealed is false when there was no open round to close.
func (s *RoundScheduler) OnRevealTime(ctx context.Context) (domain.RevealSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, revealed := s.state.CloseAndReveal(ctx)
	if revealed {
		s.notifier.RoundRevealed(ctx, summary)
		if len(summary.Winners) == 0 {
			s.notifier.NoWinners(ctx, summary.Riddle)
		}
	}
	s.state.Reset()
	return summary, revealed
}
