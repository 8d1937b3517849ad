package handlers

import (
	"net/http"

	"waitwhat-backend/internal/models"
	"waitwhat-backend/internal/services"
)

type QuestionHandler struct {
	questions *services.QuestionService
}

func NewQuestionHandler(questions *services.QuestionService) *QuestionHandler {
	return &QuestionHandler{questions: questions}
}

func (h *QuestionHandler) Ask(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req models.AskQuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	q, err := h.questions.AskQuestion(r.Context(), sessionID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, q)
}

func (h *QuestionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	questions, err := h.questions.ListRecentQuestions(r.Context(), sessionID, intQuery(r, "minutes"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if questions == nil {
		questions = []models.Question{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

func (h *QuestionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	summary, err := h.questions.SummarizeQuestions(r.Context(), sessionID, intQuery(r, "minutes"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
