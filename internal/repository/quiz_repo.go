package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"waitwhat-backend/internal/models"
)

type QuizRepo struct {
	pool *pgxpool.Pool
}

func NewQuizRepo(pool *pgxpool.Pool) *QuizRepo {
	return &QuizRepo{pool: pool}
}

// Launch persists q, makes it the session's active quiz and releases the
// generation lock, all in one transaction. It does nothing and returns false
// when token no longer owns the session lock or the session has ended.
func (r *QuizRepo) Launch(ctx context.Context, q *models.Quiz, token uuid.UUID) (bool, error) {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	questionsBytes, err := json.Marshal(q.Questions)
	if err != nil {
		return false, fmt.Errorf("marshal quiz questions: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin launch: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE sessions SET active_quiz_id = $2, quiz_generation_lock_id = NULL, quiz_generation_lock_at = NULL
		 WHERE id = $1 AND quiz_generation_lock_id = $3 AND status = 'live'`,
		q.SessionID, q.ID, token,
	)
	if err != nil {
		return false, fmt.Errorf("claim session for launch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO quizzes (id, session_id, difficulty, questions, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		q.ID, q.SessionID, q.Difficulty, questionsBytes, q.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert quiz: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit launch: %w", err)
	}
	return true, nil
}

func (r *QuizRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	q := &models.Quiz{}
	var questionsBytes []byte
	err := r.pool.QueryRow(ctx,
		"SELECT id, session_id, difficulty, questions, created_at FROM quizzes WHERE id = $1", id,
	).Scan(&q.ID, &q.SessionID, &q.Difficulty, &questionsBytes, &q.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	if err := json.Unmarshal(questionsBytes, &q.Questions); err != nil {
		return nil, fmt.Errorf("decode quiz questions: %w", err)
	}
	return q, nil
}

// LatestCreatedAt returns the creation anchor of the session's newest quiz.
func (r *QuizRepo) LatestCreatedAt(ctx context.Context, sessionID uuid.UUID) (time.Time, error) {
	var t time.Time
	err := r.pool.QueryRow(ctx,
		"SELECT created_at FROM quizzes WHERE session_id = $1 ORDER BY created_at DESC LIMIT 1", sessionID,
	).Scan(&t)
	if err != nil {
		return time.Time{}, translate(err)
	}
	return t, nil
}

// CreateResponse inserts the response unless the student already answered
// this quiz, in which case it returns false and leaves the stored row alone.
func (r *QuizRepo) CreateResponse(ctx context.Context, resp *models.QuizResponse) (bool, error) {
	if resp.ID == uuid.Nil {
		resp.ID = uuid.New()
	}
	answersBytes, err := json.Marshal(resp.Answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO quiz_responses (id, quiz_id, student_id, answers, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (quiz_id, student_id) DO NOTHING`,
		resp.ID, resp.QuizID, resp.StudentID, answersBytes, resp.CreatedAt,
	)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *QuizRepo) HasResponse(ctx context.Context, quizID uuid.UUID, studentID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM quiz_responses WHERE quiz_id = $1 AND student_id = $2)`,
		quizID, studentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check quiz response: %w", err)
	}
	return exists, nil
}

func (r *QuizRepo) ListResponses(ctx context.Context, quizID uuid.UUID) ([]models.QuizResponse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, student_id, answers, created_at FROM quiz_responses
		 WHERE quiz_id = $1 ORDER BY created_at`, quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []models.QuizResponse
	for rows.Next() {
		var resp models.QuizResponse
		var answersBytes []byte
		if err := rows.Scan(&resp.ID, &resp.QuizID, &resp.StudentID, &answersBytes, &resp.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(answersBytes, &resp.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}
