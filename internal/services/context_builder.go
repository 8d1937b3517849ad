package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"waitwhat-backend/internal/models"
)

type contextProfile struct {
	includeSlides     bool
	includeTranscript bool
	transcriptLimit   int
	windowMinutes     int
	includeQuestions  bool
	questionLimit     int
}

var contextProfiles = map[Feature]contextProfile{
	FeatureQAAnswer:        {includeSlides: true, includeTranscript: true, transcriptLimit: 120, windowMinutes: 10, includeQuestions: true, questionLimit: 10},
	FeatureQuizGeneration:  {includeSlides: true, includeTranscript: true, transcriptLimit: 300, windowMinutes: 5},
	FeatureQuestionSummary: {includeTranscript: true, transcriptLimit: 60, windowMinutes: 10, includeQuestions: true, questionLimit: 50},
	FeatureLostSummary:     {includeSlides: true, includeTranscript: true, transcriptLimit: 80, windowMinutes: 5},
}

const (
	defaultSummaryWindowMinutes = 30
	summaryQuestionLimit        = 50
)

// ContextOptions narrows the transcript window. Since beats RecentMinutes,
// which beats the feature's default window. Until is an exclusive upper bound.
type ContextOptions struct {
	RecentMinutes int
	Since         time.Time
	Until         time.Time
}

// ContextBundle is the material a prompt is built from.
type ContextBundle struct {
	Feature             Feature
	SlidesText          string
	TranscriptText      string
	TranscriptLineCount int
	// TranscriptTruncated is set when the window held more lines than the
	// feature's limit and the oldest ones were left out.
	TranscriptTruncated bool
	QAPairs             []models.QAPair
}

type ContextBuilder struct {
	sessions   SessionStore
	transcript TranscriptStore
	questions  QuestionStore
	now        func() time.Time
}

func NewContextBuilder(sessions SessionStore, transcript TranscriptStore, questions QuestionStore, now func() time.Time) *ContextBuilder {
	if now == nil {
		now = time.Now
	}
	return &ContextBuilder{sessions: sessions, transcript: transcript, questions: questions, now: now}
}

func (b *ContextBuilder) BuildContextForFeature(ctx context.Context, feature Feature, sessionID uuid.UUID, opts ContextOptions) (*ContextBundle, error) {
	profile, ok := contextProfiles[feature]
	if !ok {
		return nil, &ValidationError{Fields: map[string]string{"feature": "Unknown feature " + string(feature)}}
	}

	sess, err := b.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, sessionNotFound(err)
	}

	since := opts.Since
	if since.IsZero() {
		minutes := profile.windowMinutes
		if opts.RecentMinutes > 0 {
			minutes = opts.RecentMinutes
		}
		since = b.now().Add(-time.Duration(minutes) * time.Minute)
	}

	bundle := &ContextBundle{Feature: feature}
	if profile.includeSlides && sess.ContextText != nil {
		bundle.SlidesText = *sess.ContextText
	}

	if profile.includeTranscript {
		// One extra row tells a full window from a truncated one.
		lines, err := b.transcript.ListWindow(ctx, sessionID, since, opts.Until, profile.transcriptLimit+1)
		if err != nil {
			return nil, err
		}
		if len(lines) > profile.transcriptLimit {
			lines = lines[len(lines)-profile.transcriptLimit:]
			bundle.TranscriptTruncated = true
			log.Printf("Context for %s in session %s truncated to the newest %d transcript lines since %s",
				feature, sessionID, profile.transcriptLimit, since.Format(time.RFC3339))
		}
		texts := make([]string, len(lines))
		for i, l := range lines {
			texts[i] = l.Text
		}
		bundle.TranscriptText = strings.Join(texts, "\n")
		bundle.TranscriptLineCount = len(lines)
	}

	if profile.includeQuestions {
		questions, err := b.questions.ListSince(ctx, sessionID, since, profile.questionLimit)
		if err != nil {
			return nil, err
		}
		bundle.QAPairs = toQAPairs(questions)
	}

	return bundle, nil
}

// GetRecentQuestionsForSummary returns up to 50 questions from the trailing
// window, oldest first. windowMinutes <= 0 means 30 minutes.
func (b *ContextBuilder) GetRecentQuestionsForSummary(ctx context.Context, sessionID uuid.UUID, windowMinutes int) ([]models.QAPair, error) {
	if windowMinutes <= 0 {
		windowMinutes = defaultSummaryWindowMinutes
	}
	since := b.now().Add(-time.Duration(windowMinutes) * time.Minute)
	questions, err := b.questions.ListSince(ctx, sessionID, since, summaryQuestionLimit)
	if err != nil {
		return nil, err
	}
	return toQAPairs(questions), nil
}

func toQAPairs(questions []models.Question) []models.QAPair {
	pairs := make([]models.QAPair, 0, len(questions))
	for _, q := range questions {
		pair := models.QAPair{Question: q.Question, CreatedAt: q.CreatedAt}
		if q.Answer != nil {
			pair.Answer = *q.Answer
		}
		pairs = append(pairs, pair)
	}
	return pairs
}
