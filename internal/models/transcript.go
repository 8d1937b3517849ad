package models

import (
	"time"

	"github.com/google/uuid"
)

type TranscriptLine struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type AppendTranscriptRequest struct {
	Text string `json:"text"`
}

// TranscriptWebhookRequest is delivered by the speech-to-text producer.
type TranscriptWebhookRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Secret    string `json:"secret"`
}

type UploadSlidesRequest struct {
	Text string `json:"text"`
}
