package domain

import "time"

// MaxAttempts is the number of guesses a user gets for a single riddle.
const MaxAttempts = 5

// Riddle is one submitted question/answer pair in the pool.
type Riddle struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	// QuestionKey is the normalized question used for duplicate detection.
	QuestionKey string    `json:"-"`
	Answer      string    `json:"answer"`
	SubmitterID string    `json:"submitterId,omitempty"`
	Consumed    bool      `json:"consumed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SubmittedBy reports whether userID authored the riddle. Bot-seeded riddles have no submitter.
func (r Riddle) SubmittedBy(userID string) bool {
	return r.SubmitterID != "" && r.SubmitterID == userID
}

// UserStat is the durable per-user score and streak.
type UserStat struct {
	UserID string `json:"userId"`
	Score  int    `json:"score"`
	Streak int    `json:"streak"`
}

// StatDelta is a single atomic change to a UserStat.
type StatDelta struct {
	Score       int
	Streak      int
	ResetStreak bool
}

// ApplyTo returns stat with the delta applied. Score and streak never drop below zero.
func (d StatDelta) ApplyTo(stat UserStat) UserStat {
	stat.Score += d.Score
	if stat.Score < 0 {
		stat.Score = 0
	}
	if d.ResetStreak {
		stat.Streak = 0
	} else {
		stat.Streak += d.Streak
	}
	if stat.Streak < 0 {
		stat.Streak = 0
	}
	return stat
}

// Phase is the lifecycle position of the active round.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseOpen
	PhaseRevealed
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseRevealed:
		return "revealed"
	default:
		return "idle"
	}
}

// MarshalText renders the phase name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// RoundSnapshot is a read-only copy of the round state.
type RoundSnapshot struct {
	ID             string         `json:"id,omitempty"`
	Phase          Phase          `json:"phase"`
	Riddle         *Riddle        `json:"riddle,omitempty"`
	OpenedAt       time.Time      `json:"openedAt,omitempty"`
	RevealAt       time.Time      `json:"revealAt,omitempty"`
	CorrectUsers   []string       `json:"correctUsers,omitempty"`
	GuessAttempts  map[string]int `json:"guessAttempts,omitempty"`
	PenalizedUsers []string       `json:"penalizedUsers,omitempty"`
}

// GuessOutcome classifies how a guess was handled.
type GuessOutcome int

const (
	// OutcomeIgnored means no round was open; the message was ordinary chat.
	OutcomeIgnored GuessOutcome = iota
	OutcomeCorrect
	OutcomeIncorrect
	// OutcomePenalized is the fifth wrong guess: one point lost and streak reset.
	OutcomePenalized
	OutcomeSubmitterRejected
	OutcomeAlreadySolved
	OutcomeOutOfAttempts
)

func (o GuessOutcome) String() string {
	switch o {
	case OutcomeCorrect:
		return "correct"
	case OutcomeIncorrect:
		return "incorrect"
	case OutcomePenalized:
		return "outOfAttemptsPenalized"
	case OutcomeSubmitterRejected:
		return "submitterCannotAnswer"
	case OutcomeAlreadySolved:
		return "alreadySolved"
	case OutcomeOutOfAttempts:
		return "outOfAttempts"
	default:
		return "ignored"
	}
}

func (o GuessOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// GuessResult summarizes one processed guess.
type GuessResult struct {
	RoundID   string       `json:"roundId,omitempty"`
	UserID    string       `json:"userId"`
	Outcome   GuessOutcome `json:"outcome"`
	Score     int          `json:"score"`
	Streak    int          `json:"streak"`
	Remaining int          `json:"remaining"`
	RevealAt  time.Time    `json:"revealAt,omitempty"`
}

// RoundOpened is published when a riddle goes live.
type RoundOpened struct {
	RoundID   string    `json:"roundId"`
	Riddle    Riddle    `json:"riddle"`
	Unused    int       `json:"unused"`
	LowSupply bool      `json:"lowSupply"`
	RevealAt  time.Time `json:"revealAt"`
}

// Winner is a user who solved the round, ranked at reveal time.
type Winner struct {
	UserStat
	Rank string `json:"rank"`
}

// RevealSummary is the finalized outcome of a round.
type RevealSummary struct {
	RoundID      string   `json:"roundId"`
	Riddle       Riddle   `json:"riddle"`
	Winners      []Winner `json:"winners"`
	TopScore     int      `json:"topScore"`
	StreaksReset []string `json:"streaksReset,omitempty"`
}

// PlayerStats is a user's stat with their current rank.
type PlayerStats struct {
	UserStat
	Rank string `json:"rank"`
}

// LeaderboardEntry is a snapshot-friendly view of a ranked user.
type LeaderboardEntry struct {
	Position int `json:"position"`
	UserStat
	Rank string `json:"rank"`
}

// Leaderboard captures the ordered scoreboard.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
