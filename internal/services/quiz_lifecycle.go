package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"waitwhat-backend/internal/models"
	"waitwhat-backend/internal/repository"
)

const (
	defaultQuizQuestions = 3
	maxQuizQuestions     = 10
	defaultDifficulty    = "medium"
	defaultQuizWindow    = 5 * time.Minute

	ReasonGenerationInProgress = "generation_in_progress"
	ReasonGenerationFailed     = "generation_failed"
	ReasonLockSuperseded       = "lock_superseded"
	ReasonSessionEnded         = "session_ended"
	ReasonAlreadySubmitted     = "already_submitted"
	ReasonQuizClosed           = "quiz_closed"
)

// LaunchResult reports whether a generation request produced the active quiz.
// Refusals are values, not errors.
type LaunchResult struct {
	Accepted bool         `json:"accepted"`
	Reason   string       `json:"reason,omitempty"`
	Error    string       `json:"error,omitempty"`
	Quiz     *models.Quiz `json:"quiz,omitempty"`
}

type SubmitResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type QuizConfig struct {
	LockLease         time.Duration
	GenerationTimeout time.Duration
	Now               func() time.Time
}

type QuizService struct {
	sessions  SessionStore
	quizzes   QuizStore
	builder   *ContextBuilder
	ai        TextGenerator
	publisher EventPublisher
	now       func() time.Time
	lease     time.Duration
	timeout   time.Duration
	newToken  func() uuid.UUID
}

func NewQuizService(sessions SessionStore, quizzes QuizStore, builder *ContextBuilder, ai TextGenerator, publisher EventPublisher, cfg QuizConfig) *QuizService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LockLease <= 0 {
		cfg.LockLease = 2 * time.Minute
	}
	if cfg.GenerationTimeout <= 0 || cfg.GenerationTimeout >= cfg.LockLease {
		cfg.GenerationTimeout = cfg.LockLease / 2
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &QuizService{
		sessions:  sessions,
		quizzes:   quizzes,
		builder:   builder,
		ai:        ai,
		publisher: publisher,
		now:       cfg.Now,
		lease:     cfg.LockLease,
		timeout:   cfg.GenerationTimeout,
		newToken:  uuid.New,
	}
}

// acquireLock tries to take the session's generation lock with a fresh token.
// The returned time is the lock timestamp, which anchors the quiz: transcript
// appends are ordered against the acquire, so every line stamped before it
// is visible once the lock is held.
func (s *QuizService) acquireLock(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, time.Time, bool, error) {
	token := s.newToken()
	now := s.now()
	ok, err := s.sessions.AcquireGenerationLock(ctx, sessionID, token, now, now.Add(-s.lease))
	if err != nil {
		return uuid.Nil, time.Time{}, false, sessionNotFound(err)
	}
	return token, now, ok, nil
}

// releaseLock clears the lock if token still owns it. It runs on a context
// detached from the caller so a cancelled request still frees the lock.
func (s *QuizService) releaseLock(ctx context.Context, sessionID, token uuid.UUID) {
	if _, err := s.sessions.ReleaseGenerationLock(context.WithoutCancel(ctx), sessionID, token); err != nil {
		log.Printf("failed to release generation lock for session %s: %v", sessionID, err)
	}
}

func normalizeQuizRequest(req models.GenerateQuizRequest) (models.GenerateQuizRequest, error) {
	fields := make(map[string]string)
	if req.QuestionCount == 0 {
		req.QuestionCount = defaultQuizQuestions
	}
	if req.QuestionCount < 1 || req.QuestionCount > maxQuizQuestions {
		fields["question_count"] = fmt.Sprintf("Must be between 1 and %d", maxQuizQuestions)
	}
	req.Difficulty = strings.ToLower(strings.TrimSpace(req.Difficulty))
	switch req.Difficulty {
	case "":
		req.Difficulty = defaultDifficulty
	case "easy", "medium", "hard":
	default:
		fields["difficulty"] = "Must be easy, medium or hard"
	}
	if len(fields) > 0 {
		return req, &ValidationError{Fields: fields}
	}
	return req, nil
}

// GenerateAndLaunchQuiz runs one single-flight generation for the session.
// Only the caller that wins the lock calls the AI; the quiz is anchored to
// the moment the lock was taken so transcript appended during generation
// falls into the next quiz's window.
func (s *QuizService) GenerateAndLaunchQuiz(ctx context.Context, sessionID uuid.UUID, req models.GenerateQuizRequest) (*LaunchResult, error) {
	req, err := normalizeQuizRequest(req)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, sessionNotFound(err)
	}
	if sess.Status == models.SessionStatusEnded {
		return &LaunchResult{Reason: ReasonSessionEnded}, nil
	}

	token, t0, acquired, err := s.acquireLock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return &LaunchResult{Reason: ReasonGenerationInProgress}, nil
	}
	defer s.releaseLock(ctx, sessionID, token)

	cutoff, err := s.quizzes.LatestCreatedAt(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		cutoff = t0.Add(-defaultQuizWindow)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load previous quiz: %w", err)
	}

	bundle, err := s.builder.BuildContextForFeature(ctx, FeatureQuizGeneration, sessionID, ContextOptions{Since: cutoff, Until: t0})
	if err != nil {
		return nil, err
	}

	result := s.generate(ctx, buildQuizPrompt(bundle, req.QuestionCount, req.Difficulty), req.QuestionCount)
	if !result.Success() {
		log.Printf("Quiz generation failed for session %s: %s", sessionID, result.Err)
		return &LaunchResult{Reason: ReasonGenerationFailed, Error: result.Err}, nil
	}

	quiz := &models.Quiz{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Difficulty: req.Difficulty,
		Questions:  result.Questions,
		CreatedAt:  t0,
	}

	launched, err := s.quizzes.Launch(context.WithoutCancel(ctx), quiz, token)
	if err != nil {
		return nil, fmt.Errorf("failed to launch quiz: %w", err)
	}
	if !launched {
		return s.refusedLaunch(ctx, sessionID), nil
	}

	s.publisher.Publish(ctx, sessionID, models.WSMessage{
		Type:    models.EventQuizLaunched,
		Payload: models.QuizLaunchedEvent{QuizID: quiz.ID, QuestionCount: len(quiz.Questions)},
	})

	return &LaunchResult{Accepted: true, Quiz: quiz}, nil
}

// refusedLaunch explains a Launch the store turned down: either the session
// ended during generation or a newer generation took over the lock.
func (s *QuizService) refusedLaunch(ctx context.Context, sessionID uuid.UUID) *LaunchResult {
	sess, err := s.sessions.GetByID(context.WithoutCancel(ctx), sessionID)
	if err == nil && sess.Status == models.SessionStatusEnded {
		log.Printf("Quiz generation for session %s finished after the session ended", sessionID)
		return &LaunchResult{Reason: ReasonSessionEnded}
	}
	log.Printf("Quiz generation for session %s lost its lock before launch", sessionID)
	return &LaunchResult{Reason: ReasonLockSuperseded}
}

// generate calls the AI and folds every failure mode, panics included, into
// a GenerationResult.
func (s *QuizService) generate(ctx context.Context, prompt string, count int) (result GenerationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = generationFailure("generation panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.ai.GenerateText(ctx, FeatureQuizGeneration, prompt)
	if err != nil {
		return generationFailure("%v", &ExternalServiceError{Service: "ai", Err: err})
	}

	questions, err := parseQuizQuestions(raw, count)
	if err != nil {
		return generationFailure("%v", err)
	}
	return GenerationResult{Questions: questions}
}

func (s *QuizService) GetActiveQuiz(ctx context.Context, sessionID uuid.UUID) (*models.Quiz, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, sessionNotFound(err)
	}
	if sess.ActiveQuizID == nil {
		return nil, nil
	}
	quiz, err := s.quizzes.GetByID(ctx, *sess.ActiveQuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active quiz: %w", err)
	}
	return quiz, nil
}

// CloseQuiz clears the active quiz pointer. Quizzes and responses stay readable.
func (s *QuizService) CloseQuiz(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.sessions.ClearActiveQuiz(ctx, sessionID); err != nil {
		return sessionNotFound(err)
	}
	s.publisher.Publish(ctx, sessionID, models.WSMessage{Type: models.EventQuizClosed, Payload: map[string]string{}})
	return nil
}

func (s *QuizService) SubmitQuiz(ctx context.Context, quizID uuid.UUID, req models.SubmitQuizRequest) (*SubmitResult, error) {
	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" {
		return nil, &ValidationError{Fields: map[string]string{"student_id": "Student id is required"}}
	}

	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Quiz not found"}
	}
	if err != nil {
		return nil, err
	}

	if err := validateAnswers(quiz, req.Answers); err != nil {
		return nil, err
	}

	submitted, err := s.quizzes.HasResponse(ctx, quiz.ID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up quiz response: %w", err)
	}
	if submitted {
		return &SubmitResult{Reason: ReasonAlreadySubmitted}, nil
	}

	sess, err := s.sessions.GetByID(ctx, quiz.SessionID)
	if err != nil {
		return nil, sessionNotFound(err)
	}
	if sess.ActiveQuizID == nil || *sess.ActiveQuizID != quiz.ID {
		return &SubmitResult{Reason: ReasonQuizClosed}, nil
	}

	created, err := s.quizzes.CreateResponse(ctx, &models.QuizResponse{
		QuizID:    quiz.ID,
		StudentID: studentID,
		Answers:   req.Answers,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store quiz response: %w", err)
	}
	if !created {
		return &SubmitResult{Reason: ReasonAlreadySubmitted}, nil
	}
	return &SubmitResult{Success: true}, nil
}

func validateAnswers(quiz *models.Quiz, answers []int) error {
	if len(answers) != len(quiz.Questions) {
		return &ValidationError{Fields: map[string]string{
			"answers": fmt.Sprintf("Expected %d answers, got %d", len(quiz.Questions), len(answers)),
		}}
	}
	for i, a := range answers {
		if a < 0 || a >= len(quiz.Questions[i].Choices) {
			return &ValidationError{Fields: map[string]string{
				"answers": fmt.Sprintf("Answer %d is out of range", i+1),
			}}
		}
	}
	return nil
}

func (s *QuizService) GetQuizStats(ctx context.Context, quizID uuid.UUID) (*models.QuizStats, error) {
	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Quiz not found"}
	}
	if err != nil {
		return nil, err
	}

	responses, err := s.quizzes.ListResponses(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quiz responses: %w", err)
	}
	return computeQuizStats(quiz, responses), nil
}

// computeQuizStats scores every question against all responses. Answers
// outside a question's choice range count toward neither the correct count
// nor the distribution.
func computeQuizStats(quiz *models.Quiz, responses []models.QuizResponse) *models.QuizStats {
	total := len(responses)
	stats := &models.QuizStats{
		QuizID:         quiz.ID,
		TotalResponses: total,
		Questions:      make([]models.QuestionStats, len(quiz.Questions)),
	}

	for i, q := range quiz.Questions {
		qs := models.QuestionStats{
			Prompt:       q.Prompt,
			ConceptTag:   q.ConceptTag,
			CorrectIndex: q.CorrectIndex,
			Distribution: make([]int, len(q.Choices)),
		}
		for _, resp := range responses {
			if i >= len(resp.Answers) {
				continue
			}
			a := resp.Answers[i]
			if a < 0 || a >= len(q.Choices) {
				continue
			}
			qs.Distribution[a]++
			if a == q.CorrectIndex {
				qs.CorrectCount++
			}
		}
		if total > 0 {
			qs.Accuracy = float64(qs.CorrectCount) / float64(total)
		}
		stats.Questions[i] = qs
	}
	return stats
}
