package handlers

import (
	"errors"
	"io"
	"net/http"

	"waitwhat-backend/internal/models"
	"waitwhat-backend/internal/services"
)

type QuizHandler struct {
	quizzes *services.QuizService
}

func NewQuizHandler(quizzes *services.QuizService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes}
}

// launchStatus maps a refused launch onto an HTTP status. The body is the
// LaunchResult either way.
func launchStatus(res *services.LaunchResult) int {
	switch {
	case res.Accepted:
		return http.StatusCreated
	case res.Reason == services.ReasonGenerationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusConflict
	}
}

func (h *QuizHandler) Generate(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	// An empty body asks for the defaults.
	var req models.GenerateQuizRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	res, err := h.quizzes.GenerateAndLaunchQuiz(r.Context(), sessionID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, launchStatus(res), res)
}

func (h *QuizHandler) Active(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	quiz, err := h.quizzes.GetActiveQuiz(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"quiz": quiz})
}

func (h *QuizHandler) Close(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.quizzes.CloseQuiz(r.Context(), sessionID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Quiz closed"})
}

func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	quizID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req models.SubmitQuizRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.quizzes.SubmitQuiz(r.Context(), quizID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !res.Success {
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

func (h *QuizHandler) Stats(w http.ResponseWriter, r *http.Request) {
	quizID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	stats, err := h.quizzes.GetQuizStats(r.Context(), quizID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func decodeOptionalJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := jsonDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
