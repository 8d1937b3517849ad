package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"waitwhat-backend/internal/models"
)

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

const sessionColumns = `id, code, status, created_at, context_text, active_quiz_id,
	quiz_generation_lock_id, quiz_generation_lock_at`

func scanSession(row interface{ Scan(...any) error }) (*models.Session, error) {
	s := &models.Session{}
	err := row.Scan(&s.ID, &s.Code, &s.Status, &s.CreatedAt, &s.ContextText, &s.ActiveQuizID,
		&s.QuizGenerationLockID, &s.QuizGenerationLockAt)
	if err != nil {
		return nil, translate(err)
	}
	return s, nil
}

func (r *SessionRepo) Create(ctx context.Context, s *models.Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.Status = models.SessionStatusLive

	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, code, status, created_at) VALUES ($1, $2, $3, $4)`,
		s.ID, s.Code, s.Status, s.CreatedAt,
	)
	return translate(err)
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = $1", id))
}

func (r *SessionRepo) GetByCode(ctx context.Context, code string) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE code = $1", code))
}

func (r *SessionRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM sessions WHERE code = $1)", code).Scan(&exists)
	return exists, err
}

// End marks the session ended and clears its active quiz.
func (r *SessionRepo) End(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE sessions SET status = $1, active_quiz_id = NULL WHERE id = $2",
		models.SessionStatusEnded, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SessionRepo) SetContextText(ctx context.Context, id uuid.UUID, text string) error {
	tag, err := r.pool.Exec(ctx, "UPDATE sessions SET context_text = $1 WHERE id = $2", text, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AcquireGenerationLock writes token into the lock column when the lock is
// free or was taken before staleBefore. The compare and the set are one
// statement, so concurrent callers see exactly one success.
func (r *SessionRepo) AcquireGenerationLock(ctx context.Context, id, token uuid.UUID, now, staleBefore time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET quiz_generation_lock_id = $2, quiz_generation_lock_at = $3
		 WHERE id = $1 AND (quiz_generation_lock_id IS NULL OR quiz_generation_lock_at < $4)`,
		id, token, now, staleBefore,
	)
	if err != nil {
		return false, fmt.Errorf("acquire generation lock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ReleaseGenerationLock clears the lock only while token still owns it.
func (r *SessionRepo) ReleaseGenerationLock(ctx context.Context, id, token uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET quiz_generation_lock_id = NULL, quiz_generation_lock_at = NULL
		 WHERE id = $1 AND quiz_generation_lock_id = $2`,
		id, token,
	)
	if err != nil {
		return false, fmt.Errorf("release generation lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SessionRepo) ClearActiveQuiz(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "UPDATE sessions SET active_quiz_id = NULL WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
