package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

// GuessProcessor applies incoming guesses against the open round.
//
// Locking: the round mutex guards the attempt/correct/penalized sets and is never held
// across a ledger write. A per-user mutex is held for the whole guess, so guesses from the
// same user are fully serialized while different users reach the ledger concurrently.
type GuessProcessor struct {
	state  *RoundState
	ledger *UserLedger
	log    zerolog.Logger
}

func NewGuessProcessor(state *RoundState, ledger *UserLedger, logger zerolog.Logger) *GuessProcessor {
	return &GuessProcessor{state: state, ledger: ledger, log: logger}
}

// ledgerAction is the write reserved for a guess inside the critical section.
type ledgerAction int

const (
	actionNone ledgerAction = iota
	actionCredit
	actionPenalize
)

// Process handles one guess. Off-topic chat while no round is open yields OutcomeIgnored and a
// nil error. Rejections return the matching domain error together with a result describing them.
// A ledger failure after retries returns domain.ErrPersistence and leaves the round as it was
// before the guess.
func (p *GuessProcessor) Process(ctx context.Context, userID, text string) (domain.GuessResult, error) {
	result := domain.GuessResult{UserID: userID, Outcome: domain.OutcomeIgnored}

	s := p.state
	s.mu.Lock()
	r := s.current
	if r == nil || r.phase != domain.PhaseOpen {
		s.mu.Unlock()
		return result, nil
	}
	result.RoundID = r.id
	result.RevealAt = r.revealAt
	if r.riddle.SubmittedBy(userID) {
		s.mu.Unlock()
		result.Outcome = domain.OutcomeSubmitterRejected
		return result, domain.ErrSubmitterCannotAnswer
	}
	userMu := r.userLock(userID)
	r.inflight.Add(1)
	s.mu.Unlock()
	defer r.inflight.Done()

	userMu.Lock()
	defer userMu.Unlock()

	correct := domain.IsCorrectGuess(text, r.riddle.Answer)

	s.mu.Lock()
	if r.phase != domain.PhaseOpen {
		s.mu.Unlock()
		result.Outcome = domain.OutcomeIgnored
		return result, nil
	}
	if _, solved := r.correct[userID]; solved {
		s.mu.Unlock()
		result.Outcome = domain.OutcomeAlreadySolved
		return result, domain.ErrAlreadySolved
	}
	if r.attempts[userID] >= domain.MaxAttempts {
		s.mu.Unlock()
		result.Outcome = domain.OutcomeOutOfAttempts
		return result, domain.ErrOutOfAttempts
	}

	r.attempts[userID]++
	used := r.attempts[userID]
	action := actionNone
	switch {
	case correct:
		r.correct[userID] = struct{}{}
		action = actionCredit
	case used >= domain.MaxAttempts:
		if _, done := r.penalized[userID]; !done {
			r.penalized[userID] = struct{}{}
			action = actionPenalize
		}
	}
	s.mu.Unlock()

	result.Remaining = domain.MaxAttempts - used

	var (
		stat domain.UserStat
		err  error
	)
	switch action {
	case actionCredit:
		stat, err = p.ledger.Credit(ctx, userID)
		result.Outcome = domain.OutcomeCorrect
	case actionPenalize:
		stat, err = p.ledger.Penalize(ctx, userID)
		result.Outcome = domain.OutcomePenalized
	default:
		stat, err = p.ledger.Get(ctx, userID)
		result.Outcome = domain.OutcomeIncorrect
		if err != nil {
			// Read-only; the guess itself stands.
			p.log.Warn().Err(err).Str("user_id", userID).Msg("read stat after incorrect guess")
			err = nil
		}
	}
	if err != nil {
		p.rollback(r, userID, action)
		p.log.Error().Err(err).
			Str("round_id", r.id).
			Str("user_id", userID).
			Stringer("outcome", result.Outcome).
			Msg("guess not recorded")
		return domain.GuessResult{UserID: userID, RoundID: r.id, Outcome: domain.OutcomeIgnored, RevealAt: r.revealAt}, err
	}

	result.Score = stat.Score
	result.Streak = stat.Streak
	p.log.Debug().
		Str("round_id", r.id).
		Str("user_id", userID).
		Stringer("outcome", result.Outcome).
		Int("remaining", result.Remaining).
		Msg("guess processed")
	return result, nil
}

// rollback undoes the reservation of a guess whose ledger write failed. The caller still
// holds the user's lock, so no other guess from that user observed the reservation.
func (p *GuessProcessor) rollback(r *round, userID string, action ledgerAction) {
	s := p.state
	s.mu.Lock()
	defer s.mu.Unlock()
	switch action {
	case actionCredit:
		delete(r.correct, userID)
	case actionPenalize:
		delete(r.penalized, userID)
	}
	if r.attempts[userID] > 0 {
		r.attempts[userID]--
	}
	if r.attempts[userID] == 0 {
		delete(r.attempts, userID)
	}
}
