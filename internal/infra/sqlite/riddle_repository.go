package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

type RiddleRepository struct {
	db *sql.DB
}

const riddleColumns = `id, question, question_key, answer, submitter_id, consumed, created_at`

func (r *RiddleRepository) Insert(ctx context.Context, riddle domain.Riddle) (domain.Riddle, error) {
	if riddle.QuestionKey == "" {
		riddle.QuestionKey = domain.NormalizeQuestion(riddle.Question)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO riddles (question, question_key, answer, submitter_id, consumed, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		riddle.Question, riddle.QuestionKey, riddle.Answer, riddle.SubmitterID, riddle.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Riddle{}, domain.ErrDuplicateRiddle
		}
		return domain.Riddle{}, fmt.Errorf("insert riddle: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Riddle{}, fmt.Errorf("insert riddle id: %w", err)
	}
	riddle.ID = id
	riddle.Consumed = false
	return riddle, nil
}

func (r *RiddleRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM riddles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete riddle: %w", err)
	}
	return expectOneRow(res)
}

func (r *RiddleRepository) Get(ctx context.Context, id int64) (domain.Riddle, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+riddleColumns+` FROM riddles WHERE id = ?`, id)
	riddle, err := scanRiddle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Riddle{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Riddle{}, fmt.Errorf("get riddle: %w", err)
	}
	return riddle, nil
}

func (r *RiddleRepository) List(ctx context.Context) ([]domain.Riddle, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+riddleColumns+` FROM riddles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list riddles: %w", err)
	}
	defer rows.Close()

	var out []domain.Riddle
	for rows.Next() {
		riddle, err := scanRiddle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan riddle: %w", err)
		}
		out = append(out, riddle)
	}
	return out, rows.Err()
}

func (r *RiddleRepository) MarkConsumed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE riddles SET consumed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark consumed: %w", err)
	}
	return expectOneRow(res)
}

func (r *RiddleRepository) ResetConsumed(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE riddles SET consumed = 0`); err != nil {
		return fmt.Errorf("reset consumed: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRiddle(s scanner) (domain.Riddle, error) {
	var riddle domain.Riddle
	err := s.Scan(&riddle.ID, &riddle.Question, &riddle.QuestionKey, &riddle.Answer,
		&riddle.SubmitterID, &riddle.Consumed, &riddle.CreatedAt)
	riddle.CreatedAt = riddle.CreatedAt.UTC()
	return riddle, err
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
