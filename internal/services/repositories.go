package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"waitwhat-backend/internal/models"
	"waitwhat-backend/internal/repository"
)

type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetByCode(ctx context.Context, code string) (*models.Session, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	End(ctx context.Context, id uuid.UUID) error
	SetContextText(ctx context.Context, id uuid.UUID, text string) error
	AcquireGenerationLock(ctx context.Context, id, token uuid.UUID, now, staleBefore time.Time) (bool, error)
	ReleaseGenerationLock(ctx context.Context, id, token uuid.UUID) (bool, error)
	ClearActiveQuiz(ctx context.Context, id uuid.UUID) error
}

type StudentStore interface {
	Join(ctx context.Context, sessionID uuid.UUID, studentID string, now time.Time) (*models.Student, error)
	Get(ctx context.Context, sessionID uuid.UUID, studentID string) (*models.Student, error)
	Touch(ctx context.Context, sessionID uuid.UUID, studentID string, now time.Time) (bool, error)
	CountSeenSince(ctx context.Context, sessionID uuid.UUID, since time.Time, lostOnly bool) (int, error)
	SetLost(ctx context.Context, sessionID uuid.UUID, studentID string, isLost bool, now time.Time) (bool, error)
	SaveLostSummary(ctx context.Context, sessionID uuid.UUID, studentID, summary string, now time.Time) (bool, error)
}

type TranscriptStore interface {
	// Append stamps line.CreatedAt with now() inside the same atomic write as
	// the insert, ordered against AcquireGenerationLock on the session.
	Append(ctx context.Context, line *models.TranscriptLine, now func() time.Time) error
	ListWindow(ctx context.Context, sessionID uuid.UUID, since, until time.Time, limit int) ([]models.TranscriptLine, error)
}

type QuizStore interface {
	Launch(ctx context.Context, q *models.Quiz, token uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	LatestCreatedAt(ctx context.Context, sessionID uuid.UUID) (time.Time, error)
	CreateResponse(ctx context.Context, resp *models.QuizResponse) (bool, error)
	HasResponse(ctx context.Context, quizID uuid.UUID, studentID string) (bool, error)
	ListResponses(ctx context.Context, quizID uuid.UUID) ([]models.QuizResponse, error)
}

type QuestionStore interface {
	Create(ctx context.Context, q *models.Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error)
	SaveAnswer(ctx context.Context, id uuid.UUID, answer string) (bool, error)
	ListSince(ctx context.Context, sessionID uuid.UUID, since time.Time, limit int) ([]models.Question, error)
}

type LostEventStore interface {
	Append(ctx context.Context, e *models.LostEvent) error
	TimestampsSince(ctx context.Context, sessionID uuid.UUID, since time.Time) ([]time.Time, error)
}

// Repositories bundles the stores the services read and write.
type Repositories struct {
	Sessions   SessionStore
	Students   StudentStore
	Transcript TranscriptStore
	Quizzes    QuizStore
	Questions  QuestionStore
	LostEvents LostEventStore
}

var (
	_ SessionStore    = (*repository.SessionRepo)(nil)
	_ StudentStore    = (*repository.StudentRepo)(nil)
	_ TranscriptStore = (*repository.TranscriptRepo)(nil)
	_ QuizStore       = (*repository.QuizRepo)(nil)
	_ QuestionStore   = (*repository.QuestionRepo)(nil)
	_ LostEventStore  = (*repository.LostEventRepo)(nil)
)

// JobScheduler hands a background job to the worker pool.
type JobScheduler interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

// EventPublisher fans a realtime event out to a session's subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, uuid.UUID, models.WSMessage) {}

// sessionNotFound maps a repository miss onto the service error.
func sessionNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: "Session not found"}
	}
	return err
}
