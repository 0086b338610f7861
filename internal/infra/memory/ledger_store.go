package memory

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

const ledgerStripes = 32

// LedgerStore keeps user stats in memory. Writes lock one stripe chosen by user ID, so
// updates for the same user are serialized while most different users proceed in parallel.
type LedgerStore struct {
	stripes [ledgerStripes]ledgerStripe
}

type ledgerStripe struct {
	mu    sync.RWMutex
	stats map[string]domain.UserStat
}

func NewLedgerStore() *LedgerStore {
	s := &LedgerStore{}
	for i := range s.stripes {
		s.stripes[i].stats = make(map[string]domain.UserStat)
	}
	return s
}

func (s *LedgerStore) stripe(userID string) *ledgerStripe {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.stripes[h.Sum32()%ledgerStripes]
}

func (s *LedgerStore) Apply(_ context.Context, userID string, delta domain.StatDelta) (domain.UserStat, error) {
	st := s.stripe(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	stat, ok := st.stats[userID]
	if !ok {
		stat = domain.UserStat{UserID: userID}
	}
	stat = delta.ApplyTo(stat)
	st.stats[userID] = stat
	return stat, nil
}

func (s *LedgerStore) Get(_ context.Context, userID string) (domain.UserStat, error) {
	st := s.stripe(userID)
	st.mu.RLock()
	defer st.mu.RUnlock()
	stat, ok := st.stats[userID]
	if !ok {
		return domain.UserStat{UserID: userID}, nil
	}
	return stat, nil
}

func (s *LedgerStore) List(_ context.Context) ([]domain.UserStat, error) {
	var out []domain.UserStat
	for i := range s.stripes {
		st := &s.stripes[i]
		st.mu.RLock()
		for _, stat := range st.stats {
			out = append(out, stat)
		}
		st.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *LedgerStore) Top(ctx context.Context, n int) ([]domain.UserStat, error) {
	all, _ := s.List(ctx)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].Streak > all[j].Streak
	})
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all, nil
}
