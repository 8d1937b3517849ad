package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"waitwhat-backend/internal/models"
	"waitwhat-backend/internal/services"
)

type PresenceHandler struct {
	presence    *services.PresenceService
	lostSignals *services.LostSignalService
}

func NewPresenceHandler(presence *services.PresenceService, lostSignals *services.LostSignalService) *PresenceHandler {
	return &PresenceHandler{presence: presence, lostSignals: lostSignals}
}

func (h *PresenceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req models.HeartbeatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.presence.KeepAlive(r.Context(), sessionID, req.StudentID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PresenceHandler) SetLost(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req models.SetLostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := h.presence.SetLostStatus(r.Context(), sessionID, req.StudentID, req.IsLost)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *PresenceHandler) Counts(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	counts, err := h.presence.GetCounts(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *PresenceHandler) StudentState(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	st, err := h.presence.GetStudentState(r.Context(), sessionID, chi.URLParam(r, "studentID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *PresenceHandler) LostSpikes(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	stats, err := h.lostSignals.GetLostSpikeStats(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
