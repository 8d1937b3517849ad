package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"waitwhat-backend/internal/models"
	"waitwhat-backend/internal/repository"
)

const defaultPresenceTTL = 15 * time.Second

type PresenceService struct {
	sessions   SessionStore
	students   StudentStore
	lostEvents LostEventStore
	questions  QuestionStore
	scheduler  JobScheduler
	publisher  EventPublisher
	now        func() time.Time
	ttl        time.Duration
}

func NewPresenceService(repos Repositories, scheduler JobScheduler, publisher EventPublisher, ttl time.Duration, now func() time.Time) *PresenceService {
	if ttl <= 0 {
		ttl = defaultPresenceTTL
	}
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &PresenceService{
		sessions:   repos.Sessions,
		students:   repos.Students,
		lostEvents: repos.LostEvents,
		questions:  repos.Questions,
		scheduler:  scheduler,
		publisher:  publisher,
		now:        now,
		ttl:        ttl,
	}
}

func requireStudentID(studentID string) (string, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return "", &ValidationError{Fields: map[string]string{"student_id": "Student id is required"}}
	}
	return studentID, nil
}

// KeepAlive records a heartbeat. Unknown students are ignored; the client
// joins first and the next heartbeat lands.
func (s *PresenceService) KeepAlive(ctx context.Context, sessionID uuid.UUID, studentID string) error {
	studentID, err := requireStudentID(studentID)
	if err != nil {
		return err
	}
	_, err = s.students.Touch(ctx, sessionID, studentID, s.now())
	return err
}

// GetStudentCount counts students with a heartbeat no older than the TTL.
func (s *PresenceService) GetStudentCount(ctx context.Context, sessionID uuid.UUID) (int, error) {
	return s.students.CountSeenSince(ctx, sessionID, s.now().Add(-s.ttl), false)
}

func (s *PresenceService) GetLostStudentCount(ctx context.Context, sessionID uuid.UUID) (int, error) {
	return s.students.CountSeenSince(ctx, sessionID, s.now().Add(-s.ttl), true)
}

func (s *PresenceService) GetCounts(ctx context.Context, sessionID uuid.UUID) (*models.StudentCounts, error) {
	active, err := s.GetStudentCount(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	lost, err := s.GetLostStudentCount(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &models.StudentCounts{Active: active, Lost: lost}, nil
}

func (s *PresenceService) GetStudentState(ctx context.Context, sessionID uuid.UUID, studentID string) (*models.Student, error) {
	st, err := s.students.Get(ctx, sessionID, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Student not found"}
	}
	return st, err
}

// SetLostStatus flips the student's lost flag. Turning it on logs a lost
// event, files a canned question and schedules a catch-up summary; turning
// it off clears the previous summary.
func (s *PresenceService) SetLostStatus(ctx context.Context, sessionID uuid.UUID, studentID string, isLost bool) (*models.Student, error) {
	studentID, err := requireStudentID(studentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, sessionNotFound(err)
	}

	now := s.now()
	wasLost, err := s.students.SetLost(ctx, sessionID, studentID, isLost, now)
	if err != nil {
		return nil, err
	}

	if isLost && !wasLost {
		if err := s.onBecameLost(ctx, sessionID, studentID, now); err != nil {
			return nil, err
		}
	}

	s.publisher.Publish(ctx, sessionID, models.WSMessage{
		Type:    models.EventPresenceUpdate,
		Payload: models.PresenceUpdate{StudentID: studentID, IsLost: isLost},
	})

	return s.students.Get(ctx, sessionID, studentID)
}

func (s *PresenceService) onBecameLost(ctx context.Context, sessionID uuid.UUID, studentID string, now time.Time) error {
	if err := s.lostEvents.Append(ctx, &models.LostEvent{SessionID: sessionID, StudentID: studentID, CreatedAt: now}); err != nil {
		return err
	}

	q := &models.Question{SessionID: sessionID, StudentID: studentID, Question: lostQuestionText, CreatedAt: now}
	if err := s.questions.Create(ctx, q); err != nil {
		return err
	}

	if s.scheduler == nil {
		return nil
	}
	job := &models.Job{SessionID: sessionID, Type: models.JobTypeLostSummary, ReferenceID: q.ID, StudentID: studentID}
	if err := s.scheduler.Enqueue(ctx, job); err != nil {
		log.Printf("failed to schedule lost summary for student %s in session %s: %v", studentID, sessionID, err)
	}
	return nil
}
