package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

func TestLedgerStoreClampsAndResets(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()

	stat, _ := store.Apply(ctx, "u1", domain.StatDelta{Score: -1})
	if stat.Score != 0 || stat.Streak != 0 {
		t.Fatalf("expected clamp at zero, got %+v", stat)
	}
	stat, _ = store.Apply(ctx, "u1", domain.StatDelta{Score: 1, Streak: 1})
	stat, _ = store.Apply(ctx, "u1", domain.StatDelta{Score: 1, Streak: 1})
	if stat.Score != 2 || stat.Streak != 2 {
		t.Fatalf("expected 2/2, got %+v", stat)
	}
	stat, _ = store.Apply(ctx, "u1", domain.StatDelta{Score: -1, ResetStreak: true})
	if stat.Score != 1 || stat.Streak != 0 {
		t.Fatalf("expected 1/0, got %+v", stat)
	}

	missing, err := store.Get(ctx, "nobody")
	if err != nil || missing.UserID != "nobody" || missing.Score != 0 {
		t.Fatalf("expected zero stat, got %+v %v", missing, err)
	}
}

func TestLedgerStoreConcurrentIncrementsCompose(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for u := 0; u < 4; u++ {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				_, _ = store.Apply(ctx, user, domain.StatDelta{Score: 1})
			}(fmt.Sprintf("u%d", u))
		}
	}
	wg.Wait()

	all, _ := store.List(ctx)
	if len(all) != 4 {
		t.Fatalf("expected 4 users, got %d", len(all))
	}
	for _, stat := range all {
		if stat.Score != 50 {
			t.Fatalf("expected 50 for %s, got %d", stat.UserID, stat.Score)
		}
	}
}

func TestLedgerStoreTopOrdersByScoreThenStreak(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()
	_, _ = store.Apply(ctx, "a", domain.StatDelta{Score: 3, Streak: 1})
	_, _ = store.Apply(ctx, "b", domain.StatDelta{Score: 3, Streak: 4})
	_, _ = store.Apply(ctx, "c", domain.StatDelta{Score: 5})

	top, _ := store.Top(ctx, 2)
	if len(top) != 2 || top[0].UserID != "c" || top[1].UserID != "b" {
		t.Fatalf("unexpected order %+v", top)
	}
}
