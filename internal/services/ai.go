package services

import "context"

// Feature names the AI use case a prompt is built for.
type Feature string

const (
	FeatureQAAnswer        Feature = "qa_answer"
	FeatureQuizGeneration  Feature = "quiz_generation"
	FeatureQuestionSummary Feature = "question_summary"
	FeatureLostSummary     Feature = "lost_summary"
)

// TextGenerator is the AI collaborator: prompt in, raw model text out.
// Quiz output is JSON text; every other feature returns prose.
type TextGenerator interface {
	GenerateText(ctx context.Context, feature Feature, prompt string) (string, error)
}
