package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"waitwhat-backend/internal/handlers"
	"waitwhat-backend/internal/middleware"
	"waitwhat-backend/internal/websocket"
)

func New(
	sessionHandler *handlers.SessionHandler,
	presenceHandler *handlers.PresenceHandler,
	quizHandler *handlers.QuizHandler,
	questionHandler *handlers.QuestionHandler,
	transcriptHandler *handlers.TranscriptHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) (http.Handler, func()) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Join codes are guessable, so joins are throttled per IP
	joinLimiter := middleware.NewRateLimiter(20, time.Minute)
	// Heartbeats arrive every few seconds from each student tab
	heartbeatLimiter := middleware.NewRateLimiter(120, time.Minute)
	webhookLimiter := middleware.NewRateLimiter(600, time.Minute)
	stop := func() {
		joinLimiter.Stop()
		heartbeatLimiter.Stop()
		webhookLimiter.Stop()
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Session Routes ────
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.With(joinLimiter.Middleware).Post("/join", sessionHandler.Join)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Post("/end", sessionHandler.End)
				r.Post("/slides", sessionHandler.UploadSlides)

				// ──── Presence ────
				r.With(heartbeatLimiter.Middleware).Post("/heartbeat", presenceHandler.Heartbeat)
				r.Put("/lost", presenceHandler.SetLost)
				r.Get("/students/count", presenceHandler.Counts)
				r.Get("/students/{studentID}", presenceHandler.StudentState)
				r.Get("/lost-spikes", presenceHandler.LostSpikes)

				// ──── Quizzes ────
				r.Post("/quizzes/generate", quizHandler.Generate)
				r.Get("/quizzes/active", quizHandler.Active)
				r.Post("/quizzes/close", quizHandler.Close)

				// ──── Questions ────
				r.Post("/questions", questionHandler.Ask)
				r.Get("/questions", questionHandler.List)
				r.Get("/questions/summary", questionHandler.Summary)

				// ──── Transcript ────
				r.Post("/transcript", transcriptHandler.Append)
				r.Get("/transcript", transcriptHandler.List)
			})
		})

		r.Route("/quizzes/{id}", func(r chi.Router) {
			r.Post("/submit", quizHandler.Submit)
			r.Get("/stats", quizHandler.Stats)
		})

		// ──── Webhooks ────
		r.With(webhookLimiter.Middleware).Post("/webhooks/transcript", transcriptHandler.Webhook)

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r, stop
}
