package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionStatusLive  = "live"
	SessionStatusEnded = "ended"
)

type Session struct {
	ID                   uuid.UUID  `json:"id"`
	Code                 string     `json:"code"`
	Status               string     `json:"status"` // "live" | "ended"
	CreatedAt            time.Time  `json:"created_at"`
	ContextText          *string    `json:"context_text,omitempty"`
	ActiveQuizID         *uuid.UUID `json:"active_quiz_id"`
	QuizGenerationLockID *uuid.UUID `json:"quiz_generation_lock_id,omitempty"`
	QuizGenerationLockAt *time.Time `json:"quiz_generation_lock_at,omitempty"`
}

// GenerationInFlight reports whether a quiz generation currently holds the session lock.
func (s *Session) GenerationInFlight() bool {
	return s.QuizGenerationLockID != nil
}

type Student struct {
	ID            uuid.UUID  `json:"id"`
	SessionID     uuid.UUID  `json:"session_id"`
	StudentID     string     `json:"student_id"`
	IsLost        bool       `json:"is_lost"`
	JoinedAt      time.Time  `json:"joined_at"`
	LastSeen      time.Time  `json:"last_seen"`
	LostSummary   *string    `json:"lost_summary"`
	LostSummaryAt *time.Time `json:"lost_summary_at"`
}

type LostEvent struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	StudentID string    `json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}

type JoinSessionRequest struct {
	Code      string `json:"code"`
	StudentID string `json:"student_id"`
}

type JoinSessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	StudentID string    `json:"student_id"`
	Code      string    `json:"code"`
}

type HeartbeatRequest struct {
	StudentID string `json:"student_id"`
}

type SetLostRequest struct {
	StudentID string `json:"student_id"`
	IsLost    bool   `json:"is_lost"`
}

type StudentCounts struct {
	Active int `json:"active"`
	Lost   int `json:"lost"`
}

// LostSpikeStats is the trailing lost-signal histogram for a session.
// Buckets are oldest first, 30 seconds wide, covering the last 5 minutes.
type LostSpikeStats struct {
	Last60sCount int       `json:"last_60s_count"`
	Last5mCount  int       `json:"last_5m_count"`
	Buckets      []int     `json:"buckets"`
	ComputedAt   time.Time `json:"computed_at"`
}
