package models

import (
	"time"

	"github.com/google/uuid"
)

type Question struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	StudentID string    `json:"student_id"`
	Question  string    `json:"question"`
	Answer    *string   `json:"answer"` // nil while the answer is still being generated
	CreatedAt time.Time `json:"created_at"`
}

type AskQuestionRequest struct {
	StudentID string `json:"student_id"`
	Question  string `json:"question"`
}

// QAPair is a question with its answer as fed to AI prompts.
type QAPair struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

type QuestionSummary struct {
	SessionID     uuid.UUID `json:"session_id"`
	QuestionCount int       `json:"question_count"`
	Summary       string    `json:"summary"`
}
