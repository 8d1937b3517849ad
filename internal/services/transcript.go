package services

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/google/uuid"

	"waitwhat-backend/internal/models"
)

const (
	defaultTranscriptLimit = 200
	maxTranscriptLimit     = 1000
)

type TranscriptService struct {
	sessions      SessionStore
	transcript    TranscriptStore
	publisher     EventPublisher
	now           func() time.Time
	webhookSecret string
}

func NewTranscriptService(sessions SessionStore, transcript TranscriptStore, publisher EventPublisher, webhookSecret string, now func() time.Time) *TranscriptService {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &TranscriptService{
		sessions:      sessions,
		transcript:    transcript,
		publisher:     publisher,
		now:           now,
		webhookSecret: webhookSecret,
	}
}

func (s *TranscriptService) AppendTranscriptLine(ctx context.Context, sessionID uuid.UUID, text string) (*models.TranscriptLine, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Fields: map[string]string{"text": "Transcript text is required"}}
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, sessionNotFound(err)
	}
	if sess.Status == models.SessionStatusEnded {
		return nil, &ValidationError{Fields: map[string]string{"session_id": "Session has ended"}}
	}

	line := &models.TranscriptLine{ID: uuid.New(), SessionID: sessionID, Text: text}
	if err := s.transcript.Append(ctx, line, s.now); err != nil {
		return nil, sessionNotFound(err)
	}

	s.publisher.Publish(ctx, sessionID, models.WSMessage{Type: models.EventTranscriptLine, Payload: line})
	return line, nil
}

// ListTranscript returns the newest limit lines, oldest first.
func (s *TranscriptService) ListTranscript(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.TranscriptLine, error) {
	if limit <= 0 {
		limit = defaultTranscriptLimit
	}
	if limit > maxTranscriptLimit {
		limit = maxTranscriptLimit
	}
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, sessionNotFound(err)
	}
	return s.transcript.ListWindow(ctx, sessionID, time.Time{}, time.Time{}, limit)
}

// IngestWebhook appends a line delivered by the speech-to-text producer.
// An unset server secret rejects every delivery.
func (s *TranscriptService) IngestWebhook(ctx context.Context, req models.TranscriptWebhookRequest) (*models.TranscriptLine, error) {
	if s.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.webhookSecret)) != 1 {
		return nil, &UnauthorizedError{Message: "Invalid webhook secret"}
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"session_id": "Invalid session id"}}
	}
	return s.AppendTranscriptLine(ctx, sessionID, req.Text)
}
