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
	maxQuestionLength          = 1000
	defaultQuestionListMinutes = 30
	maxQuestionList            = 100
)

type QuestionService struct {
	sessions  SessionStore
	students  StudentStore
	questions QuestionStore
	builder   *ContextBuilder
	ai        TextGenerator
	scheduler JobScheduler
	publisher EventPublisher
	now       func() time.Time
}

func NewQuestionService(repos Repositories, builder *ContextBuilder, ai TextGenerator, scheduler JobScheduler, publisher EventPublisher, now func() time.Time) *QuestionService {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &QuestionService{
		sessions:  repos.Sessions,
		students:  repos.Students,
		questions: repos.Questions,
		builder:   builder,
		ai:        ai,
		scheduler: scheduler,
		publisher: publisher,
		now:       now,
	}
}

// AskQuestion stores the question unanswered and schedules the AI answer.
func (s *QuestionService) AskQuestion(ctx context.Context, sessionID uuid.UUID, req models.AskQuestionRequest) (*models.Question, error) {
	fields := make(map[string]string)
	studentID := strings.TrimSpace(req.StudentID)
	text := strings.TrimSpace(req.Question)
	if studentID == "" {
		fields["student_id"] = "Student id is required"
	}
	if text == "" {
		fields["question"] = "Question is required"
	} else if len(text) > maxQuestionLength {
		fields["question"] = fmt.Sprintf("Question must be at most %d characters", maxQuestionLength)
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, sessionNotFound(err)
	}

	q := &models.Question{ID: uuid.New(), SessionID: sessionID, StudentID: studentID, Question: text, CreatedAt: s.now()}
	if err := s.questions.Create(ctx, q); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, sessionID, models.WSMessage{Type: models.EventQuestionCreated, Payload: q})

	if s.scheduler != nil {
		job := &models.Job{SessionID: sessionID, Type: models.JobTypeQAAnswer, ReferenceID: q.ID, StudentID: studentID}
		if err := s.scheduler.Enqueue(ctx, job); err != nil {
			log.Printf("failed to schedule answer for question %s: %v", q.ID, err)
		}
	}
	return q, nil
}

// ListRecentQuestions returns questions from the trailing window, oldest first.
func (s *QuestionService) ListRecentQuestions(ctx context.Context, sessionID uuid.UUID, minutes int) ([]models.Question, error) {
	if minutes <= 0 {
		minutes = defaultQuestionListMinutes
	}
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, sessionNotFound(err)
	}
	return s.questions.ListSince(ctx, sessionID, s.now().Add(-time.Duration(minutes)*time.Minute), maxQuestionList)
}

// SummarizeQuestions digests recent student questions for the teacher.
func (s *QuestionService) SummarizeQuestions(ctx context.Context, sessionID uuid.UUID, windowMinutes int) (*models.QuestionSummary, error) {
	pairs, err := s.builder.GetRecentQuestionsForSummary(ctx, sessionID, windowMinutes)
	if err != nil {
		return nil, err
	}
	summary := &models.QuestionSummary{SessionID: sessionID, QuestionCount: len(pairs)}
	if len(pairs) == 0 {
		summary.Summary = "No questions in this window."
		return summary, nil
	}

	bundle, err := s.builder.BuildContextForFeature(ctx, FeatureQuestionSummary, sessionID, ContextOptions{})
	if err != nil {
		return nil, err
	}

	text, err := s.safeGenerate(ctx, FeatureQuestionSummary, buildQuestionSummaryPrompt(bundle, pairs))
	if err != nil {
		log.Printf("Question summary failed for session %s: %v", sessionID, err)
		text = fallbackDigest
	}
	summary.Summary = text
	return summary, nil
}

// HandleJob runs a background qa-answer or lost-summary job. AI failures are
// retried until the last attempt, which writes the fallback text instead.
func (s *QuestionService) HandleJob(ctx context.Context, job *models.Job) error {
	switch job.Type {
	case models.JobTypeQAAnswer:
		return s.answerQuestion(ctx, job)
	case models.JobTypeLostSummary:
		return s.summarizeForLostStudent(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func lastAttempt(job *models.Job) bool {
	return job.RetryCount+1 >= job.MaxRetries
}

func (s *QuestionService) answerQuestion(ctx context.Context, job *models.Job) error {
	q, err := s.questions.GetByID(ctx, job.ReferenceID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Printf("Question %s vanished before it was answered", job.ReferenceID)
		return nil
	}
	if err != nil {
		return err
	}
	if q.Answer != nil {
		return nil
	}

	bundle, err := s.builder.BuildContextForFeature(ctx, FeatureQAAnswer, q.SessionID, ContextOptions{})
	if err != nil {
		return err
	}

	answer, err := s.safeGenerate(ctx, FeatureQAAnswer, buildAnswerPrompt(bundle, q.Question))
	if err != nil {
		if !lastAttempt(job) {
			return err
		}
		log.Printf("Answer generation for question %s failed permanently, using fallback: %v", q.ID, err)
		answer = fallbackAnswer
	}

	saved, err := s.questions.SaveAnswer(ctx, q.ID, answer)
	if err != nil {
		return err
	}
	if saved {
		s.publisher.Publish(ctx, q.SessionID, models.WSMessage{
			Type:    models.EventQuestionAnswered,
			Payload: models.QuestionAnsweredEvent{QuestionID: q.ID, StudentID: q.StudentID},
		})
	}
	return nil
}

func (s *QuestionService) summarizeForLostStudent(ctx context.Context, job *models.Job) error {
	st, err := s.students.Get(ctx, job.SessionID, job.StudentID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if st == nil || !st.IsLost {
		// The student recovered before the summary was ready.
		_, err := s.questions.SaveAnswer(ctx, job.ReferenceID, lostResolvedAnswer)
		return err
	}

	bundle, err := s.builder.BuildContextForFeature(ctx, FeatureLostSummary, job.SessionID, ContextOptions{})
	if err != nil {
		return err
	}

	summary, err := s.safeGenerate(ctx, FeatureLostSummary, buildLostSummaryPrompt(bundle))
	if err != nil {
		if !lastAttempt(job) {
			return err
		}
		log.Printf("Lost summary for student %s failed permanently, using fallback: %v", job.StudentID, err)
		summary = fallbackLostSummary
	}

	if _, err := s.students.SaveLostSummary(ctx, job.SessionID, job.StudentID, summary, s.now()); err != nil {
		return err
	}
	saved, err := s.questions.SaveAnswer(ctx, job.ReferenceID, summary)
	if err != nil {
		return err
	}
	if saved {
		s.publisher.Publish(ctx, job.SessionID, models.WSMessage{
			Type:    models.EventQuestionAnswered,
			Payload: models.QuestionAnsweredEvent{QuestionID: job.ReferenceID, StudentID: job.StudentID},
		})
	}
	return nil
}

// safeGenerate calls the AI and turns panics into errors.
func (s *QuestionService) safeGenerate(ctx context.Context, feature Feature, prompt string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generation panicked: %v", r)
		}
	}()
	if s.ai == nil {
		return "", errors.New("no AI provider configured")
	}
	text, err = s.ai.GenerateText(ctx, feature, prompt)
	if err != nil {
		return "", &ExternalServiceError{Service: "ai", Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ExternalServiceError{Service: "ai", Err: errors.New("empty response")}
	}
	return text, nil
}
