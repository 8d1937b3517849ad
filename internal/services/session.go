package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"waitwhat-backend/internal/models"
	"waitwhat-backend/internal/repository"
)

type SessionService struct {
	sessions     SessionStore
	students     StudentStore
	publisher    EventPublisher
	now          func() time.Time
	codes        JoinCodeGenerator
	newStudentID func() string
}

func NewSessionService(repos Repositories, publisher EventPublisher, codes JoinCodeGenerator, now func() time.Time) *SessionService {
	if codes == nil {
		codes = RandomJoinCode
	}
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &SessionService{
		sessions:     repos.Sessions,
		students:     repos.Students,
		publisher:    publisher,
		now:          now,
		codes:        codes,
		newStudentID: uuid.NewString,
	}
}

// CreateSession starts a live session under a fresh join code.
func (s *SessionService) CreateSession(ctx context.Context) (*models.Session, error) {
	for attempt := 0; attempt < maxJoinCodeAttempts; attempt++ {
		code := s.codes()

		exists, err := s.sessions.CodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		sess := &models.Session{ID: uuid.New(), Code: code, CreatedAt: s.now()}
		err = s.sessions.Create(ctx, sess)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
	return nil, ErrJoinCodeExhausted
}

func (s *SessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, sessionNotFound(err)
	}
	return sess, nil
}

// JoinSession resolves a join code and registers the student. A missing
// student id is minted; joining again keeps the existing row.
func (s *SessionService) JoinSession(ctx context.Context, req models.JoinSessionRequest) (*models.JoinSessionResponse, error) {
	code := strings.ToLower(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, &ValidationError{Fields: map[string]string{"code": "Join code is required"}}
	}

	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return nil, sessionNotFound(err)
	}
	if sess.Status == models.SessionStatusEnded {
		return nil, &ValidationError{Fields: map[string]string{"code": "Session has ended"}}
	}

	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" {
		studentID = s.newStudentID()
	}

	if _, err := s.students.Join(ctx, sess.ID, studentID, s.now()); err != nil {
		return nil, err
	}

	return &models.JoinSessionResponse{SessionID: sess.ID, StudentID: studentID, Code: sess.Code}, nil
}

func (s *SessionService) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.sessions.End(ctx, sessionID); err != nil {
		return sessionNotFound(err)
	}
	s.publisher.Publish(ctx, sessionID, models.WSMessage{Type: models.EventSessionEnded, Payload: map[string]string{}})
	return nil
}

// UploadSlides stores already-extracted slide text as the session context.
func (s *SessionService) UploadSlides(ctx context.Context, sessionID uuid.UUID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return &ValidationError{Fields: map[string]string{"text": "Slide text is required"}}
	}
	if err := s.sessions.SetContextText(ctx, sessionID, text); err != nil {
		return sessionNotFound(err)
	}
	return nil
}
