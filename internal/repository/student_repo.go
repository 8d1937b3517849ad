package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"waitwhat-backend/internal/models"
)

type StudentRepo struct {
	pool *pgxpool.Pool
}

func NewStudentRepo(pool *pgxpool.Pool) *StudentRepo {
	return &StudentRepo{pool: pool}
}

// Join inserts the student or, on re-join, refreshes last_seen on the existing row.
func (r *StudentRepo) Join(ctx context.Context, sessionID uuid.UUID, studentID string, now time.Time) (*models.Student, error) {
	st := &models.Student{}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (id, session_id, student_id, is_lost, joined_at, last_seen)
		 VALUES ($1, $2, $3, FALSE, $4, $4)
		 ON CONFLICT (session_id, student_id) DO UPDATE SET last_seen = EXCLUDED.last_seen
		 RETURNING id, session_id, student_id, is_lost, joined_at, last_seen, lost_summary, lost_summary_at`,
		uuid.New(), sessionID, studentID, now,
	).Scan(&st.ID, &st.SessionID, &st.StudentID, &st.IsLost, &st.JoinedAt, &st.LastSeen, &st.LostSummary, &st.LostSummaryAt)
	if err != nil {
		return nil, translate(err)
	}
	return st, nil
}

func (r *StudentRepo) Get(ctx context.Context, sessionID uuid.UUID, studentID string) (*models.Student, error) {
	st := &models.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, session_id, student_id, is_lost, joined_at, last_seen, lost_summary, lost_summary_at
		 FROM students WHERE session_id = $1 AND student_id = $2`,
		sessionID, studentID,
	).Scan(&st.ID, &st.SessionID, &st.StudentID, &st.IsLost, &st.JoinedAt, &st.LastSeen, &st.LostSummary, &st.LostSummaryAt)
	if err != nil {
		return nil, translate(err)
	}
	return st, nil
}

// Touch sets last_seen and reports whether the row exists.
func (r *StudentRepo) Touch(ctx context.Context, sessionID uuid.UUID, studentID string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		"UPDATE students SET last_seen = $3 WHERE session_id = $1 AND student_id = $2",
		sessionID, studentID, now,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CountSeenSince counts students whose last heartbeat is at or after since.
func (r *StudentRepo) CountSeenSince(ctx context.Context, sessionID uuid.UUID, since time.Time, lostOnly bool) (int, error) {
	query := "SELECT COUNT(*) FROM students WHERE session_id = $1 AND last_seen >= $2"
	if lostOnly {
		query += " AND is_lost"
	}
	var n int
	err := r.pool.QueryRow(ctx, query, sessionID, since).Scan(&n)
	return n, err
}

// SetLost upserts is_lost and last_seen and returns the previous is_lost value.
// Clearing the flag also clears the stored lost summary.
func (r *StudentRepo) SetLost(ctx context.Context, sessionID uuid.UUID, studentID string, isLost bool, now time.Time) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin set lost: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO students (id, session_id, student_id, is_lost, joined_at, last_seen)
		 VALUES ($1, $2, $3, FALSE, $4, $4)
		 ON CONFLICT (session_id, student_id) DO NOTHING`,
		uuid.New(), sessionID, studentID, now,
	)
	if err != nil {
		return false, translate(err)
	}

	var wasLost bool
	err = tx.QueryRow(ctx,
		"SELECT is_lost FROM students WHERE session_id = $1 AND student_id = $2 FOR UPDATE",
		sessionID, studentID,
	).Scan(&wasLost)
	if err != nil {
		return false, translate(err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE students SET is_lost = $3, last_seen = $4,
		   lost_summary = CASE WHEN $3 THEN lost_summary ELSE NULL END,
		   lost_summary_at = CASE WHEN $3 THEN lost_summary_at ELSE NULL END
		 WHERE session_id = $1 AND student_id = $2`,
		sessionID, studentID, isLost, now,
	)
	if err != nil {
		return false, err
	}

	return wasLost, tx.Commit(ctx)
}

// SaveLostSummary stores the summary only while the student is still lost.
func (r *StudentRepo) SaveLostSummary(ctx context.Context, sessionID uuid.UUID, studentID, summary string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE students SET lost_summary = $3, lost_summary_at = $4
		 WHERE session_id = $1 AND student_id = $2 AND is_lost`,
		sessionID, studentID, summary, now,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
