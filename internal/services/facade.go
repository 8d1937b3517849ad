package services

import (
	"time"
)

// FacadeConfig carries the collaborators and tunables shared by the services.
type FacadeConfig struct {
	AI                TextGenerator
	Scheduler         JobScheduler
	Publisher         EventPublisher
	JoinCodes         JoinCodeGenerator
	PresenceTTL       time.Duration
	LockLease         time.Duration
	GenerationTimeout time.Duration
	WebhookSecret     string
	Now               func() time.Time
}

// Facade is the public surface of a live session: session lifecycle,
// presence, lost signals, quizzes, questions and transcript.
type Facade struct {
	Sessions    *SessionService
	Presence    *PresenceService
	LostSignals *LostSignalService
	Quizzes     *QuizService
	Questions   *QuestionService
	Transcript  *TranscriptService
	Context     *ContextBuilder
}

func NewFacade(repos Repositories, cfg FacadeConfig) *Facade {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Publisher == nil {
		cfg.Publisher = nopPublisher{}
	}

	builder := NewContextBuilder(repos.Sessions, repos.Transcript, repos.Questions, cfg.Now)
	quizzes := NewQuizService(repos.Sessions, repos.Quizzes, builder, cfg.AI, cfg.Publisher, QuizConfig{
		LockLease:         cfg.LockLease,
		GenerationTimeout: cfg.GenerationTimeout,
		Now:               cfg.Now,
	})

	return &Facade{
		Sessions:    NewSessionService(repos, cfg.Publisher, cfg.JoinCodes, cfg.Now),
		Presence:    NewPresenceService(repos, cfg.Scheduler, cfg.Publisher, cfg.PresenceTTL, cfg.Now),
		LostSignals: NewLostSignalService(repos.LostEvents, cfg.Now),
		Quizzes:     quizzes,
		Questions:   NewQuestionService(repos, builder, cfg.AI, cfg.Scheduler, cfg.Publisher, cfg.Now),
		Transcript:  NewTranscriptService(repos.Sessions, repos.Transcript, cfg.Publisher, cfg.WebhookSecret, cfg.Now),
		Context:     builder,
	}
}
