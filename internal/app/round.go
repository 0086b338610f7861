package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

// RoundState owns the single active round. All mutation goes through its methods
// (transitions) or the GuessProcessor (open-phase bookkeeping), both under mu.
//
// Idle is represented by a nil current round.
type RoundState struct {
	ledger *UserLedger
	log    zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	current *round
}

type round struct {
	id        string
	riddle    domain.Riddle
	phase     domain.Phase
	openedAt  time.Time
	revealAt  time.Time
	correct   map[string]struct{}
	attempts  map[string]int
	penalized map[string]struct{}

	// userLocks serialize guesses from the same user for the whole round.
	userLocks map[string]*sync.Mutex
	// inflight counts guesses admitted while open; reveal waits for them.
	inflight sync.WaitGroup
	// finalized is set once CloseAndReveal has finished its sweep.
	finalized bool
}

func NewRoundState(ledger *UserLedger, logger zerolog.Logger) *RoundState {
	return NewRoundStateWithClock(ledger, logger, time.Now)
}

// NewRoundStateWithClock allows deterministic timestamps in tests.
func NewRoundStateWithClock(ledger *UserLedger, logger zerolog.Logger, now func() time.Time) *RoundState {
	return &RoundState{ledger: ledger, log: logger, now: now}
}

// OpenRound installs riddle as the open round. Fails with domain.ErrRoundAlreadyActive unless idle.
func (s *RoundState) OpenRound(riddle domain.Riddle, revealAt time.Time) (domain.RoundSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return domain.RoundSnapshot{}, domain.ErrRoundAlreadyActive
	}
	s.current = &round{
		id:        uuid.Must(uuid.NewV7()).String(),
		riddle:    riddle,
		phase:     domain.PhaseOpen,
		openedAt:  s.now().UTC(),
		revealAt:  revealAt.UTC(),
		correct:   make(map[string]struct{}),
		attempts:  make(map[string]int),
		penalized: make(map[string]struct{}),
		userLocks: make(map[string]*sync.Mutex),
	}
	s.log.Info().
		Str("round_id", s.current.id).
		Int64("riddle_id", riddle.ID).
		Time("reveal_at", s.current.revealAt).
		Msg("round opened")
	return s.current.snapshot(), nil
}

// CloseAndReveal moves an open round to revealed, waits for in-flight guesses, applies the
// non-participation streak reset and computes the congratulations set. It is a logged no-op
// (ok=false) when no round is open, so duplicate timer fires are harmless.
func (s *RoundState) CloseAndReveal(ctx context.Context) (domain.RevealSummary, bool) {
	s.mu.Lock()
	r := s.current
	if r == nil || r.phase != domain.PhaseOpen {
		phase := domain.PhaseIdle
		if r != nil {
			phase = r.phase
		}
		s.mu.Unlock()
		s.log.Info().Stringer("phase", phase).Msg("reveal skipped: no open round")
		return domain.RevealSummary{}, false
	}
	r.phase = domain.PhaseRevealed
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		r.finalized = true
		s.mu.Unlock()
	}()

	// Guesses admitted before the phase flip finish (or roll back) first.
	r.inflight.Wait()

	s.mu.Lock()
	correct := sortedKeys(r.correct)
	participated := make(map[string]bool, len(r.attempts)+len(r.correct))
	for userID, n := range r.attempts {
		participated[userID] = n > 0
	}
	for _, userID := range correct {
		participated[userID] = true
	}
	s.mu.Unlock()

	summary := domain.RevealSummary{RoundID: r.id, Riddle: r.riddle}
	summary.StreaksReset = s.sweepNonParticipants(ctx, r, participated)

	topScore, err := s.ledger.MaxScore(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("round_id", r.id).Msg("read top score")
	}
	summary.TopScore = topScore
	for _, userID := range correct {
		stat, err := s.ledger.Get(ctx, userID)
		if err != nil {
			s.log.Error().Err(err).Str("round_id", r.id).Str("user_id", userID).Msg("read winner stat")
			stat = domain.UserStat{UserID: userID}
		}
		summary.Winners = append(summary.Winners, domain.Winner{
			UserStat: stat,
			Rank:     domain.RankFor(stat.Score, stat.Streak, topScore),
		})
	}

	s.log.Info().
		Str("round_id", r.id).
		Int64("riddle_id", r.riddle.ID).
		Int("winners", len(summary.Winners)).
		Int("streaks_reset", len(summary.StreaksReset)).
		Msg("round revealed")
	return summary, true
}

// sweepNonParticipants resets the streak of every ledger user who neither solved nor guessed,
// except the riddle's submitter. Failures are logged by the ledger and the sweep continues.
func (s *RoundState) sweepNonParticipants(ctx context.Context, r *round, participated map[string]bool) []string {
	users, err := s.ledger.All(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("round_id", r.id).Msg("non-participation sweep skipped")
		return nil
	}
	var reset []string
	for _, stat := range users {
		if stat.Streak == 0 || participated[stat.UserID] || r.riddle.SubmittedBy(stat.UserID) {
			continue
		}
		if _, err := s.ledger.ResetStreak(ctx, stat.UserID); err != nil {
			continue
		}
		reset = append(reset, stat.UserID)
	}
	sort.Strings(reset)
	return reset
}

// Reset clears a finalized revealed round back to idle. It reports false, without
// changing anything, when there is nothing to reset or the round is still open.
func (s *RoundState) Reset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.current
	if r == nil {
		return false
	}
	if r.phase != domain.PhaseRevealed || !r.finalized {
		s.log.Warn().Str("round_id", r.id).Stringer("phase", r.phase).Msg("reset skipped: round not revealed")
		return false
	}
	s.current = nil
	s.log.Info().Str("round_id", r.id).Msg("round cleared")
	return true
}

// Phase returns the current lifecycle phase.
func (s *RoundState) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return domain.PhaseIdle
	}
	return s.current.phase
}

// Snapshot returns a copy of the current round.
func (s *RoundState) Snapshot() domain.RoundSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return domain.RoundSnapshot{Phase: domain.PhaseIdle}
	}
	return s.current.snapshot()
}

func (r *round) snapshot() domain.RoundSnapshot {
	riddle := r.riddle
	attempts := make(map[string]int, len(r.attempts))
	for k, v := range r.attempts {
		attempts[k] = v
	}
	return domain.RoundSnapshot{
		ID:             r.id,
		Phase:          r.phase,
		Riddle:         &riddle,
		OpenedAt:       r.openedAt,
		RevealAt:       r.revealAt,
		CorrectUsers:   sortedKeys(r.correct),
		GuessAttempts:  attempts,
		PenalizedUsers: sortedKeys(r.penalized),
	}
}

func (r *round) userLock(userID string) *sync.Mutex {
	l, ok := r.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.userLocks[userID] = l
	}
	return l
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
