package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

const uniqueViolation = "23505"

// RiddleRepository stores riddles in Postgres.
type RiddleRepository struct {
	pool *pgxpool.Pool
}

func NewRiddleRepository(pool *pgxpool.Pool) *RiddleRepository {
	return &RiddleRepository{pool: pool}
}

const riddleColumns = `id, question, question_key, answer, submitter_id, consumed, created_at`

func (r *RiddleRepository) Insert(ctx context.Context, riddle domain.Riddle) (domain.Riddle, error) {
	if riddle.QuestionKey == "" {
		riddle.QuestionKey = domain.NormalizeQuestion(riddle.Question)
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO riddles (question, question_key, answer, submitter_id, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		riddle.Question, riddle.QuestionKey, riddle.Answer, riddle.SubmitterID, riddle.CreatedAt.UTC(),
	).Scan(&riddle.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Riddle{}, domain.ErrDuplicateRiddle
		}
		return domain.Riddle{}, fmt.Errorf("insert riddle: %w", err)
	}
	riddle.Consumed = false
	return riddle, nil
}

func (r *RiddleRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM riddles WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete riddle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RiddleRepository) Get(ctx context.Context, id int64) (domain.Riddle, error) {
	riddle, err := scanRiddle(r.pool.QueryRow(ctx, `SELECT `+riddleColumns+` FROM riddles WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Riddle{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Riddle{}, fmt.Errorf("get riddle: %w", err)
	}
	return riddle, nil
}

func (r *RiddleRepository) List(ctx context.Context) ([]domain.Riddle, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+riddleColumns+` FROM riddles ORDER BY id`)
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
	tag, err := r.pool.Exec(ctx, `UPDATE riddles SET consumed=TRUE WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("mark consumed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RiddleRepository) ResetConsumed(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `UPDATE riddles SET consumed=FALSE WHERE consumed`); err != nil {
		return fmt.Errorf("reset consumed: %w", err)
	}
	return nil
}

func scanRiddle(row pgx.Row) (domain.Riddle, error) {
	var riddle domain.Riddle
	err := row.Scan(&riddle.ID, &riddle.Question, &riddle.QuestionKey, &riddle.Answer,
		&riddle.SubmitterID, &riddle.Consumed, &riddle.CreatedAt)
	riddle.CreatedAt = riddle.CreatedAt.UTC()
	return riddle, err
}
