package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

type LedgerStore struct {
	db *sql.DB
}

// ?1 user, ?2 score delta, ?3 streak delta, ?4 reset streak.
const applyDeltaSQL = `
INSERT INTO user_stats (user_id, score, streak)
VALUES (?1, MAX(?2, 0), CASE WHEN ?4 THEN 0 ELSE MAX(?3, 0) END)
ON CONFLICT (user_id) DO UPDATE SET
    score  = MAX(user_stats.score + ?2, 0),
    streak = CASE WHEN ?4 THEN 0 ELSE MAX(user_stats.streak + ?3, 0) END
RETURNING user_id, score, streak`

func (s *LedgerStore) Apply(ctx context.Context, userID string, delta domain.StatDelta) (domain.UserStat, error) {
	var stat domain.UserStat
	err := s.db.QueryRowContext(ctx, applyDeltaSQL, userID, delta.Score, delta.Streak, delta.ResetStreak).
		Scan(&stat.UserID, &stat.Score, &stat.Streak)
	if err != nil {
		return domain.UserStat{}, fmt.Errorf("apply stat delta: %w", err)
	}
	return stat, nil
}

func (s *LedgerStore) Get(ctx context.Context, userID string) (domain.UserStat, error) {
	stat := domain.UserStat{UserID: userID}
	err := s.db.QueryRowContext(ctx, `SELECT score, streak FROM user_stats WHERE user_id = ?`, userID).
		Scan(&stat.Score, &stat.Streak)
	if errors.Is(err, sql.ErrNoRows) {
		return stat, nil
	}
	if err != nil {
		return domain.UserStat{}, fmt.Errorf("get stat: %w", err)
	}
	return stat, nil
}

func (s *LedgerStore) List(ctx context.Context) ([]domain.UserStat, error) {
	return s.query(ctx, `SELECT user_id, score, streak FROM user_stats ORDER BY user_id`)
}

func (s *LedgerStore) Top(ctx context.Context, n int) ([]domain.UserStat, error) {
	if n <= 0 {
		return s.query(ctx, `SELECT user_id, score, streak FROM user_stats ORDER BY score DESC, streak DESC, user_id`)
	}
	return s.query(ctx, `SELECT user_id, score, streak FROM user_stats ORDER BY score DESC, streak DESC, user_id LIMIT ?`, n)
}

func (s *LedgerStore) query(ctx context.Context, q string, args ...any) ([]domain.UserStat, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var out []domain.UserStat
	for rows.Next() {
		var stat domain.UserStat
		if err := rows.Scan(&stat.UserID, &stat.Score, &stat.Streak); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		out = append(out, stat)
	}
	return out, rows.Err()
}
