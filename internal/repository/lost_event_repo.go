package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"waitwhat-backend/internal/models"
)

type LostEventRepo struct {
	pool *pgxpool.Pool
}

func NewLostEventRepo(pool *pgxpool.Pool) *LostEventRepo {
	return &LostEventRepo{pool: pool}
}

func (r *LostEventRepo) Append(ctx context.Context, e *models.LostEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx,
		"INSERT INTO lost_events (id, session_id, student_id, created_at) VALUES ($1, $2, $3, $4)",
		e.ID, e.SessionID, e.StudentID, e.CreatedAt,
	)
	return translate(err)
}

// TimestampsSince returns event times at or after since, oldest first.
func (r *LostEventRepo) TimestampsSince(ctx context.Context, sessionID uuid.UUID, since time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT created_at FROM lost_events WHERE session_id = $1 AND created_at >= $2 ORDER BY created_at",
		sessionID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
