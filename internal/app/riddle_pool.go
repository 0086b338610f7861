package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

// RiddlePool supplies the next riddle to post without immediate repetition.
type RiddlePool struct {
	repo RiddleRepository
	now  func() time.Time

	mu     sync.Mutex
	rnd    *rand.Rand
	lastID int64
}

func NewRiddlePool(repo RiddleRepository) *RiddlePool {
	return NewRiddlePoolWithClock(repo, time.Now)
}

// NewRiddlePoolWithClock allows deterministic timestamps in tests.
func NewRiddlePoolWithClock(repo RiddleRepository, now func() time.Time) *RiddlePool {
	return &RiddlePool{
		repo: repo,
		now:  now,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Submit validates and stores a new riddle. Nothing is written when validation fails.
func (p *RiddlePool) Submit(ctx context.Context, question, answer, submitterID string) (domain.Riddle, error) {
	question = strings.Join(strings.Fields(question), " ")
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return domain.Riddle{}, domain.ErrEmptyField
	}

	riddle, err := p.repo.Insert(ctx, domain.Riddle{
		Question:    question,
		QuestionKey: domain.NormalizeQuestion(question),
		Answer:      answer,
		SubmitterID: submitterID,
		CreatedAt:   p.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateRiddle) {
			return domain.Riddle{}, err
		}
		return domain.Riddle{}, persistenceError("submit riddle", err)
	}
	return riddle, nil
}

// Remove deletes a riddle by ID.
func (p *RiddlePool) Remove(ctx context.Context, id int64) error {
	if err := p.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return persistenceError("remove riddle", err)
	}
	return nil
}

// List returns every riddle ordered by ID.
func (p *RiddlePool) List(ctx context.Context) ([]domain.Riddle, error) {
	riddles, err := p.repo.List(ctx)
	if err != nil {
		return nil, persistenceError("list riddles", err)
	}
	return riddles, nil
}

// Unused counts riddles that have not been drawn since the last reset.
func (p *RiddlePool) Unused(ctx context.Context) (int, error) {
	riddles, err := p.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range riddles {
		if !r.Consumed {
			n++
		}
	}
	return n, nil
}

// DrawNext picks a random unconsumed riddle and durably marks it consumed before returning.
// When every riddle has been used the consumed flags are cleared and the draw retried once;
// the riddle drawn last is skipped on that retry unless it is the only one.
// Returns domain.ErrPoolEmpty only when the pool holds no riddles at all.
func (p *RiddlePool) DrawNext(ctx context.Context) (domain.Riddle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	all, err := p.repo.List(ctx)
	if err != nil {
		return domain.Riddle{}, persistenceError("draw riddle", err)
	}
	if len(all) == 0 {
		return domain.Riddle{}, domain.ErrPoolEmpty
	}

	candidates := make([]domain.Riddle, 0, len(all))
	for _, r := range all {
		if !r.Consumed {
			candidates = append(candidates, r)
		}
	}

	if len(candidates) == 0 {
		if err := p.repo.ResetConsumed(ctx); err != nil {
			return domain.Riddle{}, persistenceError("reset pool", err)
		}
		for _, r := range all {
			if len(all) > 1 && r.ID == p.lastID {
				continue
			}
			r.Consumed = false
			candidates = append(candidates, r)
		}
	}

	pick := candidates[p.rnd.Intn(len(candidates))]
	if err := p.repo.MarkConsumed(ctx, pick.ID); err != nil {
		return domain.Riddle{}, persistenceError("mark consumed", err)
	}
	pick.Consumed = true
	p.lastID = pick.ID
	return pick, nil
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}
