package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

// RiddleBackend is the slice of a riddle repository the cache fronts.
type RiddleBackend interface {
	Insert(ctx context.Context, riddle domain.Riddle) (domain.Riddle, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (domain.Riddle, error)
	List(ctx context.Context) ([]domain.Riddle, error)
	MarkConsumed(ctx context.Context, id int64) error
	ResetConsumed(ctx context.Context) error
}

// CachedRiddles caches the riddle list with a TTL to avoid repeated DB hits from
// listing commands and supply checks. Every write through the cache invalidates it.
type CachedRiddles struct {
	backend RiddleBackend
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group

	mu        sync.RWMutex
	rnd       *rand.Rand
	list      []domain.Riddle
	expiresAt time.Time
	gen       uint64
}

func NewCachedRiddles(backend RiddleBackend, ttl time.Duration) *CachedRiddles {
	return NewCachedRiddlesWithClock(backend, ttl, time.Now)
}

func NewCachedRiddlesWithClock(backend RiddleBackend, ttl time.Duration, clock func() time.Time) *CachedRiddles {
	return &CachedRiddles{
		backend: backend,
		ttl:     ttl,
		clock:   clock,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CachedRiddles) List(ctx context.Context) ([]domain.Riddle, error) {
	if list, ok := c.cached(); ok {
		return list, nil
	}

	result, err, _ := c.sf.Do("list", func() (interface{}, error) {
		if list, ok := c.cached(); ok {
			return list, nil
		}
		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()

		list, err := c.backend.List(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// A write landed while loading; keep the result uncached.
		if gen == c.gen {
			c.list = list
			c.expiresAt = c.clock().Add(c.ttlWithJitter())
		}
		c.mu.Unlock()
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return copyRiddles(result.([]domain.Riddle)), nil
}

func (c *CachedRiddles) Get(ctx context.Context, id int64) (domain.Riddle, error) {
	return c.backend.Get(ctx, id)
}

func (c *CachedRiddles) Insert(ctx context.Context, riddle domain.Riddle) (domain.Riddle, error) {
	defer c.invalidate()
	return c.backend.Insert(ctx, riddle)
}

func (c *CachedRiddles) Delete(ctx context.Context, id int64) error {
	defer c.invalidate()
	return c.backend.Delete(ctx, id)
}

func (c *CachedRiddles) MarkConsumed(ctx context.Context, id int64) error {
	defer c.invalidate()
	return c.backend.MarkConsumed(ctx, id)
}

func (c *CachedRiddles) ResetConsumed(ctx context.Context) error {
	defer c.invalidate()
	return c.backend.ResetConsumed(ctx)
}

func (c *CachedRiddles) cached() ([]domain.Riddle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.list == nil || !c.expiresAt.After(c.clock()) {
		return nil, false
	}
	return copyRiddles(c.list), true
}

func (c *CachedRiddles) invalidate() {
	c.mu.Lock()
	c.list = nil
	c.gen++
	c.mu.Unlock()
}

func (c *CachedRiddles) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func copyRiddles(in []domain.Riddle) []domain.Riddle {
	out := make([]domain.Riddle, len(in))
	copy(out, in)
	return out
}
