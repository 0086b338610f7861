package app

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

// ContestService contains the riddle contest use cases. Chat adapters call it; it never
// formats messages itself.
type ContestService struct {
	pool      *RiddlePool
	ledger    *UserLedger
	state     *RoundState
	guesses   *GuessProcessor
	scheduler *RoundScheduler
	notifier  Notifier
	log       zerolog.Logger
	now       func() time.Time
	sf        singleflight.Group

	rewardMu sync.Mutex
	// rewarded maps user ID to the UTC day of their last submission reward.
	rewarded map[string]string
}

// Options configures NewContestService. Zero values fall back to defaults.
type Options struct {
	Notifier           Notifier
	Logger             *zerolog.Logger
	Now                func() time.Time
	RevealAt           func(openedAt time.Time) time.Time
	LowSupplyThreshold int
	LedgerRetries      int
	RetryBackoff       time.Duration
}

func NewContestService(riddles RiddleRepository, stats LedgerStore, opts Options) *ContestService {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}

	ledger := NewUserLedger(stats, logger.With().Str("component", "ledger").Logger(), opts.LedgerRetries, opts.RetryBackoff)
	state := NewRoundStateWithClock(ledger, logger.With().Str("component", "round").Logger(), opts.Now)
	pool := NewRiddlePoolWithClock(riddles, opts.Now)

	return &ContestService{
		pool:    pool,
		ledger:  ledger,
		state:   state,
		guesses: NewGuessProcessor(state, ledger, logger.With().Str("component", "guess").Logger()),
		scheduler: NewRoundScheduler(pool, state, opts.Notifier, logger.With().Str("component", "scheduler").Logger(), SchedulerConfig{
			Now:                opts.Now,
			RevealAt:           opts.RevealAt,
			LowSupplyThreshold: opts.LowSupplyThreshold,
		}),
		notifier: opts.Notifier,
		log:      logger,
		now:      opts.Now,
		rewarded: make(map[string]string),
	}
}

// Scheduler exposes the timer hooks for the schedule driver.
func (s *ContestService) Scheduler() *RoundScheduler {
	return s.scheduler
}

// Round returns a snapshot of the active round.
func (s *ContestService) Round() domain.RoundSnapshot {
	return s.state.Snapshot()
}

// SubmitRiddle adds a riddle to the pool. The first submission of each UTC day earns the
// submitter one point (awarded=true). A failed reward write does not undo the submission.
func (s *ContestService) SubmitRiddle(ctx context.Context, question, answer, submitterID string) (domain.Riddle, bool, error) {
	riddle, err := s.pool.Submit(ctx, question, answer, submitterID)
	if err != nil {
		return domain.Riddle{}, false, err
	}
	s.log.Info().Int64("riddle_id", riddle.ID).Str("user_id", submitterID).Msg("riddle submitted")

	if submitterID == "" || !s.claimReward(submitterID) {
		return riddle, false, nil
	}
	if _, err := s.ledger.IncrementScore(ctx, submitterID, 1); err != nil {
		s.releaseReward(submitterID)
		return riddle, false, nil
	}
	return riddle, true, nil
}

// RemoveRiddle deletes a riddle by ID.
func (s *ContestService) RemoveRiddle(ctx context.Context, id int64) error {
	return s.pool.Remove(ctx, id)
}

// RemoveRiddleByRef parses a user-supplied riddle reference and removes it.
func (s *ContestService) RemoveRiddleByRef(ctx context.Context, ref string) (int64, error) {
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidRiddleID
	}
	return id, s.pool.Remove(ctx, id)
}

// ListRiddles returns every riddle in the pool.
func (s *ContestService) ListRiddles(ctx context.Context) ([]domain.Riddle, error) {
	return s.pool.List(ctx)
}

// Guess processes a chat message as a guess and publishes the result when it concerned the round.
func (s *ContestService) Guess(ctx context.Context, userID, text string) (domain.GuessResult, error) {
	result, err := s.guesses.Process(ctx, userID, text)
	if result.Outcome != domain.OutcomeIgnored {
		s.notifier.GuessResult(ctx, result)
	}
	return result, err
}

// Stats returns a user's stat and rank.
func (s *ContestService) Stats(ctx context.Context, userID string) (domain.PlayerStats, error) {
	stat, err := s.ledger.Get(ctx, userID)
	if err != nil {
		return domain.PlayerStats{}, err
	}
	top, err := s.ledger.MaxScore(ctx)
	if err != nil {
		return domain.PlayerStats{}, err
	}
	return domain.PlayerStats{UserStat: stat, Rank: domain.RankFor(stat.Score, stat.Streak, top)}, nil
}

// Leaderboard returns up to n ranked users with a positive score or streak.
// Concurrent identical requests share one store read.
func (s *ContestService) Leaderboard(ctx context.Context, n int) (domain.Leaderboard, error) {
	if n <= 0 {
		n = 10
	}
	result, err, _ := s.sf.Do("top:"+strconv.Itoa(n), func() (interface{}, error) {
		stats, err := s.ledger.TopN(ctx, n)
		if err != nil {
			return domain.Leaderboard{}, err
		}
		return buildLeaderboard(stats, s.now()), nil
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return result.(domain.Leaderboard), nil
}

// AddPoint is the moderator credit: one point and one streak day.
func (s *ContestService) AddPoint(ctx context.Context, userID string) (domain.UserStat, error) {
	return s.ledger.Credit(ctx, userID)
}

// RemovePoint is the moderator penalty: one point (clamped) and a streak reset.
func (s *ContestService) RemovePoint(ctx context.Context, userID string) (domain.UserStat, error) {
	return s.ledger.Penalize(ctx, userID)
}

func (s *ContestService) claimReward(userID string) bool {
	day := s.now().UTC().Format("2006-01-02")
	s.rewardMu.Lock()
	defer s.rewardMu.Unlock()
	if s.rewarded[userID] == day {
		return false
	}
	s.rewarded[userID] = day
	return true
}

func (s *ContestService) releaseReward(userID string) {
	s.rewardMu.Lock()
	defer s.rewardMu.Unlock()
	delete(s.rewarded, userID)
}

func buildLeaderboard(stats []domain.UserStat, now time.Time) domain.Leaderboard {
	filtered := make([]domain.UserStat, 0, len(stats))
	for _, st := range stats {
		if st.Score >= 1 || st.Streak >= 1 {
			filtered = append(filtered, st)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Score != filtered[j].Score {
			return filtered[i].Score > filtered[j].Score
		}
		if filtered[i].Streak != filtered[j].Streak {
			return filtered[i].Streak > filtered[j].Streak
		}
		return filtered[i].UserID < filtered[j].UserID
	})

	top := 0
	if len(filtered) > 0 {
		top = filtered[0].Score
	}
	entries := make([]domain.LeaderboardEntry, 0, len(filtered))
	for i, st := range filtered {
		entries = append(entries, domain.LeaderboardEntry{
			Position: i + 1,
			UserStat: st,
			Rank:     domain.RankFor(st.Score, st.Streak, top),
		})
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: now.UTC()}
}
