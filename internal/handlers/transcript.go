package handlers

import (
	"net/http"

	"waitwhat-backend/internal/models"
	"waitwhat-backend/internal/services"
)

type TranscriptHandler struct {
	transcript *services.TranscriptService
}

func NewTranscriptHandler(transcript *services.TranscriptService) *TranscriptHandler {
	return &TranscriptHandler{transcript: transcript}
}

func (h *TranscriptHandler) Append(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req models.AppendTranscriptRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	line, err := h.transcript.AppendTranscriptLine(r.Context(), sessionID, req.Text)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

func (h *TranscriptHandler) List(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	lines, err := h.transcript.ListTranscript(r.Context(), sessionID, intQuery(r, "limit"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if lines == nil {
		lines = []models.TranscriptLine{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"lines": lines})
}

// Webhook ingests a line from the speech-to-text producer.
func (h *TranscriptHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req models.TranscriptWebhookRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	line, err := h.transcript.IngestWebhook(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}
