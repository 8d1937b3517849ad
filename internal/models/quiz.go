package models

import (
	"time"

	"github.com/google/uuid"
)

type Quiz struct {
	ID         uuid.UUID      `json:"id"`
	SessionID  uuid.UUID      `json:"session_id"`
	Difficulty string         `json:"difficulty"`
	Questions  []QuizQuestion `json:"questions"`
	CreatedAt  time.Time      `json:"created_at"` // generation start, not persistence time
}

type QuizQuestion struct {
	Prompt       string   `json:"prompt"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
	ConceptTag   string   `json:"concept_tag"`
}

type QuizResponse struct {
	ID        uuid.UUID `json:"id"`
	QuizID    uuid.UUID `json:"quiz_id"`
	StudentID string    `json:"student_id"`
	Answers   []int     `json:"answers"`
	CreatedAt time.Time `json:"created_at"`
}

type GenerateQuizRequest struct {
	QuestionCount int    `json:"question_count"`
	Difficulty    string `json:"difficulty"`
}

type SubmitQuizRequest struct {
	StudentID string `json:"student_id"`
	Answers   []int  `json:"answers"`
}

type QuizStats struct {
	QuizID         uuid.UUID       `json:"quiz_id"`
	TotalResponses int             `json:"total_responses"`
	Questions      []QuestionStats `json:"questions"`
}

type QuestionStats struct {
	Prompt       string  `json:"prompt"`
	ConceptTag   string  `json:"concept_tag"`
	CorrectIndex int     `json:"correct_index"`
	CorrectCount int     `json:"correct_count"`
	Accuracy     float64 `json:"accuracy"`
	Distribution []int   `json:"distribution"`
}
