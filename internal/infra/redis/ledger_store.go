package redis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

// Keys share the {ledger} hash tag so the apply script touches a single cluster slot.
const (
	usersKey       = "{ledger}:users"
	leaderboardKey = "{ledger}:leaderboard"
	userKeyPrefix  = "{ledger}:user:"

	// streakSpan packs score and streak into one sorted-set score: score*streakSpan + streak.
	streakSpan = 1_000_000
)

// applyScript performs the clamped read-modify-write and keeps the leaderboard ZSET in step.
// KEYS: user hash, users set, leaderboard. ARGV: user id, score delta, streak delta, reset flag.
var applyScript = redis.NewScript(`
local score = tonumber(redis.call('HGET', KEYS[1], 'score') or '0')
local streak = tonumber(redis.call('HGET', KEYS[1], 'streak') or '0')
score = score + tonumber(ARGV[2])
if score < 0 then score = 0 end
if ARGV[4] == '1' then
  streak = 0
else
  streak = streak + tonumber(ARGV[3])
end
if streak < 0 then streak = 0 end
redis.call('HSET', KEYS[1], 'score', score, 'streak', streak)
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('ZADD', KEYS[3], score * ` + strconv.Itoa(streakSpan) + ` + streak, ARGV[1])
return {score, streak}
`)

// LedgerStore keeps user stats in Redis hashes with a sorted set for ranking.
type LedgerStore struct {
	client *redis.Client
}

func NewLedgerStore(client *redis.Client) *LedgerStore {
	return &LedgerStore{client: client}
}

func (s *LedgerStore) Apply(ctx context.Context, userID string, delta domain.StatDelta) (domain.UserStat, error) {
	reset := "0"
	if delta.ResetStreak {
		reset = "1"
	}
	vals, err := applyScript.Run(ctx, s.client,
		[]string{userKey(userID), usersKey, leaderboardKey},
		userID, delta.Score, delta.Streak, reset,
	).Int64Slice()
	if err != nil {
		return domain.UserStat{}, fmt.Errorf("apply stat delta: %w", err)
	}
	if len(vals) != 2 {
		return domain.UserStat{}, fmt.Errorf("apply stat delta: unexpected reply %v", vals)
	}
	return domain.UserStat{UserID: userID, Score: int(vals[0]), Streak: int(vals[1])}, nil
}

func (s *LedgerStore) Get(ctx context.Context, userID string) (domain.UserStat, error) {
	vals, err := s.client.HMGet(ctx, userKey(userID), "score", "streak").Result()
	if err != nil {
		return domain.UserStat{}, fmt.Errorf("get stat: %w", err)
	}
	return statFromHash(userID, vals), nil
}

func (s *LedgerStore) List(ctx context.Context) ([]domain.UserStat, error) {
	users, err := s.client.SMembers(ctx, usersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	sort.Strings(users)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(users))
	for i, userID := range users {
		cmds[i] = pipe.HMGet(ctx, userKey(userID), "score", "streak")
	}
	if len(users) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("list stats: %w", err)
		}
	}

	out := make([]domain.UserStat, 0, len(users))
	for i, userID := range users {
		out = append(out, statFromHash(userID, cmds[i].Val()))
	}
	return out, nil
}

// Top returns the n best users. A page that ends inside a tie is widened to the whole tie
// before sorting, so the cut falls by user ID like the SQL stores.
func (s *LedgerStore) Top(ctx context.Context, n int) ([]domain.UserStat, error) {
	stop := int64(-1)
	if n > 0 {
		stop = int64(n - 1)
	}
	entries, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("top stats: %w", err)
	}
	if n > 0 && len(entries) == n {
		boundary := strconv.FormatFloat(entries[n-1].Score, 'f', -1, 64)
		tied, err := s.client.ZRangeByScoreWithScores(ctx, leaderboardKey, &redis.ZRangeBy{Min: boundary, Max: boundary}).Result()
		if err != nil {
			return nil, fmt.Errorf("top stats boundary: %w", err)
		}
		entries = mergeTies(entries, tied)
	}

	out := make([]domain.UserStat, 0, len(entries))
	for _, z := range entries {
		userID, _ := z.Member.(string)
		packed := int64(math.Round(z.Score))
		out = append(out, domain.UserStat{
			UserID: userID,
			Score:  int(packed / streakSpan),
			Streak: int(packed % streakSpan),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Streak != out[j].Streak {
			return out[i].Streak > out[j].Streak
		}
		return out[i].UserID < out[j].UserID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// mergeTies appends the tied members missing from page.
func mergeTies(page, tied []redis.Z) []redis.Z {
	seen := make(map[interface{}]struct{}, len(page))
	for _, z := range page {
		seen[z.Member] = struct{}{}
	}
	for _, z := range tied {
		if _, ok := seen[z.Member]; !ok {
			page = append(page, z)
		}
	}
	return page
}

func userKey(userID string) string {
	return userKeyPrefix + userID
}

func statFromHash(userID string, vals []interface{}) domain.UserStat {
	stat := domain.UserStat{UserID: userID}
	if len(vals) == 2 {
		stat.Score = atoi(vals[0])
		stat.Streak = atoi(vals[1])
	}
	return stat
}

func atoi(v interface{}) int {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
