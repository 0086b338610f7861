package redis

import (
	"context"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

func newTestStore(t *testing.T) (*LedgerStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLedgerStore(client), mr
}

func TestLedgerStoreApplyClampsAndRanks(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	stat, err := store.Apply(ctx, "u1", domain.StatDelta{Score: -1, ResetStreak: true})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if stat.Score != 0 || stat.Streak != 0 {
		t.Fatalf("expected clamped stat, got %+v", stat)
	}

	for i := 0; i < 3; i++ {
		if stat, err = store.Apply(ctx, "u1", domain.StatDelta{Score: 1, Streak: 1}); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	if stat.Score != 3 || stat.Streak != 3 {
		t.Fatalf("expected 3/3, got %+v", stat)
	}
	if got := mr.HGet(userKey("u1"), "score"); got != "3" {
		t.Fatalf("expected hash score 3, got %q", got)
	}
	if ok, _ := mr.SIsMember(usersKey, "u1"); !ok {
		t.Fatalf("expected u1 in users set")
	}

	stat, err = store.Apply(ctx, "u1", domain.StatDelta{Score: -1, ResetStreak: true})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if stat.Score != 2 || stat.Streak != 0 {
		t.Fatalf("expected 2/0, got %+v", stat)
	}
}

func TestLedgerStoreTopAndList(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, _ = store.Apply(ctx, "b", domain.StatDelta{Score: 2, Streak: 5})
	_, _ = store.Apply(ctx, "a", domain.StatDelta{Score: 2, Streak: 1})
	_, _ = store.Apply(ctx, "c", domain.StatDelta{Score: 7})
	_, _ = store.Apply(ctx, "d", domain.StatDelta{Score: 2, Streak: 1})

	top, err := store.Top(ctx, 0)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	want := []string{"c", "b", "a", "d"}
	if len(top) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), top)
	}
	for i, id := range want {
		if top[i].UserID != id {
			t.Fatalf("position %d: want %s, got %+v", i, id, top)
		}
	}
	if top[1].Streak != 5 || top[0].Score != 7 {
		t.Fatalf("packed score decoded wrong: %+v", top)
	}

	limited, _ := store.Top(ctx, 1)
	if len(limited) != 1 || limited[0].UserID != "c" {
		t.Fatalf("expected only c, got %+v", limited)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 || all[0].UserID != "a" || all[0].Score != 2 || all[0].Streak != 1 {
		t.Fatalf("unexpected list %+v", all)
	}

	missing, err := store.Get(ctx, "nobody")
	if err != nil || missing.Score != 0 || missing.UserID != "nobody" {
		t.Fatalf("expected zero stat, got %+v %v", missing, err)
	}
}

func TestLedgerStoreConcurrentApply(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Apply(ctx, "u1", domain.StatDelta{Score: 1, Streak: 1})
		}()
	}
	wg.Wait()

	stat, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stat.Score != 30 || stat.Streak != 30 {
		t.Fatalf("expected 30/30, got %+v", stat)
	}
}

func TestLedgerStoreTopCutsTiesByUserID(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, _ = store.Apply(ctx, "c", domain.StatDelta{Score: 7})
	for _, id := range []string{"e", "a", "d"} {
		_, _ = store.Apply(ctx, id, domain.StatDelta{Score: 2, Streak: 1})
	}

	top, err := store.Top(ctx, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "c" || top[1].UserID != "a" {
		t.Fatalf("expected [c a], got %+v", top)
	}

	top, _ = store.Top(ctx, 3)
	if len(top) != 3 || top[1].UserID != "a" || top[2].UserID != "d" {
		t.Fatalf("expected [c a d], got %+v", top)
	}
}
