package services

import (
	"fmt"
	"strings"

	"waitwhat-backend/internal/models"
)

const (
	fallbackAnswer      = "Sorry, I couldn't answer that right now. Your teacher can see your question."
	fallbackLostSummary = "Hang tight. Your teacher has been told you're lost and will go over this part again."
	fallbackDigest      = "Question summary is unavailable right now."
	lostResolvedAnswer  = "Marked as resolved."
	lostQuestionText    = "I'm feeling lost. Can you recap what was just covered?"
)

func systemPrompt(feature Feature) string {
	switch feature {
	case FeatureQuizGeneration:
		return "You write short multiple choice checks for understanding during a live lecture. Reply with JSON only."
	case FeatureQAAnswer:
		return "You are a teaching assistant answering a student's question during a live lecture. Be brief and concrete."
	case FeatureLostSummary:
		return "You help a student who just lost track of a live lecture catch up. Be encouraging and brief."
	case FeatureQuestionSummary:
		return "You summarize student questions for the lecturer so they can address common confusion."
	default:
		return "You are a helpful teaching assistant."
	}
}

func writeContext(b *strings.Builder, bundle *ContextBundle) {
	if bundle.SlidesText != "" {
		b.WriteString("\n---SLIDES---\n")
		b.WriteString(bundle.SlidesText)
		b.WriteString("\n---END SLIDES---\n")
	}
	if bundle.TranscriptText != "" {
		b.WriteString("\n---TRANSCRIPT---\n")
		b.WriteString(bundle.TranscriptText)
		b.WriteString("\n---END TRANSCRIPT---\n")
	}
	if len(bundle.QAPairs) > 0 {
		b.WriteString("\n---RECENT QUESTIONS---\n")
		for _, p := range bundle.QAPairs {
			fmt.Fprintf(b, "Q: %s\n", p.Question)
			if p.Answer != "" {
				fmt.Fprintf(b, "A: %s\n", p.Answer)
			}
		}
		b.WriteString("---END QUESTIONS---\n")
	}
}

func buildQuizPrompt(bundle *ContextBundle, questionCount int, difficulty string) string {
	var b strings.Builder

	b.WriteString("Generate a quick comprehension quiz from the lecture content below.\n\n")
	b.WriteString("CRITICAL: Return ONLY valid JSON. No preamble, no markdown, no backticks.\n\n")
	fmt.Fprintf(&b, "Generate exactly %d questions.\n", questionCount)
	fmt.Fprintf(&b, "Difficulty: %s\n", difficulty)

	switch difficulty {
	case "easy":
		b.WriteString("Easy = direct recall of what was just said.\n")
	case "medium":
		b.WriteString("Medium = application of the concepts just covered.\n")
	case "hard":
		b.WriteString("Hard = inference beyond what was explicitly stated.\n")
	}

	b.WriteString(`
Focus on the transcript; use slides only for terminology.
JSON shape:
{"questions": [{"prompt": "string", "choices": ["string"], "correct_index": int, "explanation": "string", "concept_tag": "string"}]}

Each question has 4 choices and exactly one correct answer.
`)
	writeContext(&b, bundle)
	return b.String()
}

func buildAnswerPrompt(bundle *ContextBundle, question string) string {
	var b strings.Builder
	b.WriteString("A student asked the question below during the lecture. Answer in at most 4 sentences, ")
	b.WriteString("grounded in the lecture material. If the material does not cover it, say so briefly.\n\n")
	fmt.Fprintf(&b, "QUESTION: %s\n", question)
	writeContext(&b, bundle)
	return b.String()
}

func buildLostSummaryPrompt(bundle *ContextBundle) string {
	var b strings.Builder
	b.WriteString("A student just signalled they are lost. Recap the last few minutes of the lecture in 3 short ")
	b.WriteString("bullet points a struggling student can follow, then one sentence on what comes next.\n")
	writeContext(&b, bundle)
	if bundle.TranscriptLineCount == 0 {
		b.WriteString("\nNo transcript is available yet; rely on the slides.\n")
	}
	return b.String()
}

func buildQuestionSummaryPrompt(bundle *ContextBundle, pairs []models.QAPair) string {
	var b strings.Builder
	b.WriteString("Group the student questions below by theme. For each theme give one line with the count and ")
	b.WriteString("the underlying confusion. End with the single most important thing to re-explain.\n")
	b.WriteString("\n---STUDENT QUESTIONS---\n")
	for _, p := range pairs {
		fmt.Fprintf(&b, "[%s] %s\n", p.CreatedAt.Format("15:04"), p.Question)
	}
	b.WriteString("---END STUDENT QUESTIONS---\n")
	writeContext(&b, bundle)
	return b.String()
}
