package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobTypeQAAnswer    = "qa-answer"
	JobTypeLostSummary = "lost-summary"

	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

type Job struct {
	ID           uuid.UUID  `json:"id"`
	SessionID    uuid.UUID  `json:"session_id"`
	Type         string     `json:"type"` // "qa-answer" | "lost-summary"
	ReferenceID  uuid.UUID  `json:"reference_id"`
	StudentID    string     `json:"student_id"`
	Status       string     `json:"status"` // "pending" | "processing" | "completed" | "failed"
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	ErrorMessage *string    `json:"error_message"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// WebSocket message types
const (
	EventTranscriptLine   = "transcript_line"
	EventPresenceUpdate   = "presence_update"
	EventQuizLaunched     = "quiz_launched"
	EventQuizClosed       = "quiz_closed"
	EventQuestionCreated  = "question_created"
	EventQuestionAnswered = "question_answered"
	EventSessionEnded     = "session_ended"
	EventJobFailed        = "job_failed"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type PresenceUpdate struct {
	StudentID string `json:"student_id"`
	IsLost    bool   `json:"is_lost"`
}

type QuizLaunchedEvent struct {
	QuizID        uuid.UUID `json:"quiz_id"`
	QuestionCount int       `json:"question_count"`
}

type QuestionAnsweredEvent struct {
	QuestionID uuid.UUID `json:"question_id"`
	StudentID  string    `json:"student_id"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
