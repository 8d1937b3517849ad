package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"waitwhat-backend/internal/models"
)

type QuestionRepo struct {
	pool *pgxpool.Pool
}

func NewQuestionRepo(pool *pgxpool.Pool) *QuestionRepo {
	return &QuestionRepo{pool: pool}
}

func (r *QuestionRepo) Create(ctx context.Context, q *models.Question) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO questions (id, session_id, student_id, question, answer, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		q.ID, q.SessionID, q.StudentID, q.Question, q.Answer, q.CreatedAt,
	)
	return translate(err)
}

func (r *QuestionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	q := &models.Question{}
	err := r.pool.QueryRow(ctx,
		"SELECT id, session_id, student_id, question, answer, created_at FROM questions WHERE id = $1", id,
	).Scan(&q.ID, &q.SessionID, &q.StudentID, &q.Question, &q.Answer, &q.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return q, nil
}

// SaveAnswer fills the answer once; later write-backs return false.
func (r *QuestionRepo) SaveAnswer(ctx context.Context, id uuid.UUID, answer string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		"UPDATE questions SET answer = $2 WHERE id = $1 AND answer IS NULL", id, answer,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListSince returns the newest limit questions created at or after since,
// oldest first.
func (r *QuestionRepo) ListSince(ctx context.Context, sessionID uuid.UUID, since time.Time, limit int) ([]models.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, student_id, question, answer, created_at FROM (
			SELECT id, session_id, student_id, question, answer, created_at FROM questions
			WHERE session_id = $1 AND created_at >= $2
			ORDER BY created_at DESC
			LIMIT $3
		) recent ORDER BY created_at ASC`,
		sessionID, since, nullableLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.SessionID, &q.StudentID, &q.Question, &q.Answer, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
