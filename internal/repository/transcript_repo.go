package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"waitwhat-backend/internal/models"
)

type TranscriptRepo struct {
	pool *pgxpool.Pool
}

func NewTranscriptRepo(pool *pgxpool.Pool) *TranscriptRepo {
	return &TranscriptRepo{pool: pool}
}

// Append holds a share lock on the session row while it stamps and inserts
// the line. AcquireGenerationLock updates that row, so it waits for every
// in-flight append to commit, and appends that start after it are stamped
// later than the lock time.
func (r *TranscriptRepo) Append(ctx context.Context, line *models.TranscriptLine, now func() time.Time) error {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transcript append: %w", err)
	}
	defer tx.Rollback(ctx)

	var one int
	err = tx.QueryRow(ctx, "SELECT 1 FROM sessions WHERE id = $1 FOR SHARE", line.SessionID).Scan(&one)
	if err != nil {
		return translate(err)
	}

	line.CreatedAt = now()
	_, err = tx.Exec(ctx,
		"INSERT INTO transcript_lines (id, session_id, text, created_at) VALUES ($1, $2, $3, $4)",
		line.ID, line.SessionID, line.Text, line.CreatedAt,
	)
	if err != nil {
		return translate(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transcript append: %w", err)
	}
	return nil
}

// ListWindow returns the newest limit lines with since <= created_at < until,
// in chronological order. Zero bounds are open; limit <= 0 means no limit.
func (r *TranscriptRepo) ListWindow(ctx context.Context, sessionID uuid.UUID, since, until time.Time, limit int) ([]models.TranscriptLine, error) {
	query := `SELECT id, session_id, text, created_at FROM (
		SELECT id, session_id, text, created_at FROM transcript_lines
		WHERE session_id = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC
		LIMIT $4
	) recent ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, sessionID, nullableTime(since), nullableTime(until), nullableLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []models.TranscriptLine
	for rows.Next() {
		var l models.TranscriptLine
		if err := rows.Scan(&l.ID, &l.SessionID, &l.Text, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// nullableLimit turns "no limit" into a NULL LIMIT, which Postgres treats as ALL.
func nullableLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
