package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"waitwhat-backend/internal/models"
)

const defaultConceptTag = "general"

// GenerationResult is the normalised outcome of one AI quiz generation.
// Exactly one of Questions and Err is set.
type GenerationResult struct {
	Questions []models.QuizQuestion
	Err       string
}

func (r GenerationResult) Success() bool { return r.Err == "" && len(r.Questions) > 0 }

func generationFailure(format string, args ...any) GenerationResult {
	return GenerationResult{Err: fmt.Sprintf(format, args...)}
}

type rawQuizQuestion struct {
	Prompt       *string  `json:"prompt"`
	Choices      []string `json:"choices"`
	CorrectIndex *int     `json:"correct_index"`
	Explanation  *string  `json:"explanation"`
	ConceptTag   *string  `json:"concept_tag"`
}

// parseQuizQuestions decodes model output into questions. Either a bare JSON
// array or an object with a "questions" array is accepted. Any invalid
// question rejects the whole output; at most limit questions are kept.
func parseQuizQuestions(raw string, limit int) ([]models.QuizQuestion, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	items, err := decodeQuizItems(raw)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.New("model returned no questions")
	}

	questions := make([]models.QuizQuestion, 0, len(items))
	for i, item := range items {
		q, err := validateQuizQuestion(item)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions = append(questions, q)
	}

	if limit > 0 && len(questions) > limit {
		questions = questions[:limit]
	}
	return questions, nil
}

func decodeQuizItems(raw string) ([]rawQuizQuestion, error) {
	var wrapped struct {
		Questions []rawQuizQuestion `json:"questions"`
	}
	if strings.HasPrefix(raw, "{") {
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			return nil, fmt.Errorf("malformed quiz JSON: %w", err)
		}
		return wrapped.Questions, nil
	}

	var items []rawQuizQuestion
	if err := json.Unmarshal([]byte(raw), &items); err == nil {
		return items, nil
	}

	// Try to extract JSON array
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON array in model output")
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("malformed quiz JSON: %w", err)
	}
	return items, nil
}

func validateQuizQuestion(item rawQuizQuestion) (models.QuizQuestion, error) {
	if item.Prompt == nil || strings.TrimSpace(*item.Prompt) == "" {
		return models.QuizQuestion{}, errors.New("missing prompt")
	}
	if len(item.Choices) < 2 {
		return models.QuizQuestion{}, errors.New("needs at least two choices")
	}
	for _, c := range item.Choices {
		if strings.TrimSpace(c) == "" {
			return models.QuizQuestion{}, errors.New("empty choice")
		}
	}
	if item.CorrectIndex == nil {
		return models.QuizQuestion{}, errors.New("missing correct_index")
	}
	if *item.CorrectIndex < 0 || *item.CorrectIndex >= len(item.Choices) {
		return models.QuizQuestion{}, fmt.Errorf("correct_index %d out of range", *item.CorrectIndex)
	}
	if item.Explanation == nil || strings.TrimSpace(*item.Explanation) == "" {
		return models.QuizQuestion{}, errors.New("missing explanation")
	}

	tag := defaultConceptTag
	if item.ConceptTag != nil && strings.TrimSpace(*item.ConceptTag) != "" {
		tag = strings.TrimSpace(*item.ConceptTag)
	}

	return models.QuizQuestion{
		Prompt:       strings.TrimSpace(*item.Prompt),
		Choices:      item.Choices,
		CorrectIndex: *item.CorrectIndex,
		Explanation:  strings.TrimSpace(*item.Explanation),
		ConceptTag:   tag,
	}, nil
}
