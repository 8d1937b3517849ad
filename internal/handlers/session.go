package handlers

import (
	"io"
	"net/http"
	"strings"

	"waitwhat-backend/internal/models"
	"waitwhat-backend/internal/services"
)

type SessionHandler struct {
	sessions  *services.SessionService
	extractor *services.SlideExtractor
}

func NewSessionHandler(sessions *services.SessionService, extractor *services.SlideExtractor) *SessionHandler {
	return &SessionHandler{sessions: sessions, extractor: extractor}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.CreateSession(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req models.JoinSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.sessions.JoinSession(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	sess, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.sessions.EndSession(r.Context(), sessionID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session ended"})
}

// UploadSlides accepts either {"text": "..."} or a multipart "file" field
// holding a .txt, .md, .pdf or .docx deck.
func (h *SessionHandler) UploadSlides(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var text string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, services.MaxSlidesBytes+1<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "File too large or invalid form", r))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "File is required", r))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Failed to read file", r))
			return
		}

		text, err = h.extractor.Extract(header.Filename, data)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
	} else {
		var req models.UploadSlidesRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		text = req.Text
	}

	if err := h.sessions.UploadSlides(r.Context(), sessionID, text); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Slides uploaded",
		"characters": len(text),
	})
}
