package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

// RiddleRepository is an in-memory riddle store. Useful for tests and single-process demos.
type RiddleRepository struct {
	mu      sync.RWMutex
	nextID  int64
	riddles map[int64]domain.Riddle
	keys    map[string]int64
}

func NewRiddleRepository() *RiddleRepository {
	return &RiddleRepository{
		riddles: make(map[int64]domain.Riddle),
		keys:    make(map[string]int64),
	}
}

func (r *RiddleRepository) Insert(_ context.Context, riddle domain.Riddle) (domain.Riddle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := riddle.QuestionKey
	if key == "" {
		key = domain.NormalizeQuestion(riddle.Question)
	}
	if _, dup := r.keys[key]; dup {
		return domain.Riddle{}, domain.ErrDuplicateRiddle
	}
	r.nextID++
	riddle.ID = r.nextID
	riddle.QuestionKey = key
	r.riddles[riddle.ID] = riddle
	r.keys[key] = riddle.ID
	return riddle, nil
}

func (r *RiddleRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	riddle, ok := r.riddles[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.riddles, id)
	delete(r.keys, riddle.QuestionKey)
	return nil
}

func (r *RiddleRepository) Get(_ context.Context, id int64) (domain.Riddle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	riddle, ok := r.riddles[id]
	if !ok {
		return domain.Riddle{}, domain.ErrNotFound
	}
	return riddle, nil
}

func (r *RiddleRepository) List(_ context.Context) ([]domain.Riddle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Riddle, 0, len(r.riddles))
	for _, riddle := range r.riddles {
		out = append(out, riddle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *RiddleRepository) MarkConsumed(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	riddle, ok := r.riddles[id]
	if !ok {
		return domain.ErrNotFound
	}
	riddle.Consumed = true
	r.riddles[id] = riddle
	return nil
}

func (r *RiddleRepository) ResetConsumed(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, riddle := range r.riddles {
		riddle.Consumed = false
		r.riddles[id] = riddle
	}
	return nil
}
