package services

import (
	"strings"
	"testing"
)

const validQuestionJSON = `{"prompt":"What is 2+2?","choices":["3","4"],"correct_index":1,"explanation":"Arithmetic."}`

func TestParseQuizQuestions_Accepts(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		limit int
		want  int
	}{
		{"wrapped object", `{"questions":[` + validQuestionJSON + `]}`, 5, 1},
		{"bare array", `[` + validQuestionJSON + `,` + validQuestionJSON + `]`, 5, 2},
		{"fenced", "```json\n[" + validQuestionJSON + "]\n```", 5, 1},
		{"array inside prose", "Here you go: [" + validQuestionJSON + "] enjoy", 5, 1},
		{"truncated to limit", `[` + validQuestionJSON + `,` + validQuestionJSON + `]`, 1, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			qs, err := parseQuizQuestions(tc.raw, tc.limit)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(qs) != tc.want {
				t.Fatalf("Expected %d questions, got %d", tc.want, len(qs))
			}
			if qs[0].ConceptTag != defaultConceptTag {
				t.Errorf("Expected default concept tag, got %q", qs[0].ConceptTag)
			}
		})
	}
}

func TestParseQuizQuestions_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"empty array", `[]`, "no questions"},
		{"empty wrapped", `{"questions":[]}`, "no questions"},
		{"not json", `sorry, I cannot`, "no JSON array"},
		{"missing prompt", `[{"choices":["a","b"],"correct_index":0,"explanation":"x"}]`, "missing prompt"},
		{"missing correct index", `[{"prompt":"p","choices":["a","b"],"explanation":"x"}]`, "missing correct_index"},
		{"index out of range", `[{"prompt":"p","choices":["a","b"],"correct_index":2,"explanation":"x"}]`, "out of range"},
		{"one choice", `[{"prompt":"p","choices":["a"],"correct_index":0,"explanation":"x"}]`, "two choices"},
		{"missing explanation", `[{"prompt":"p","choices":["a","b"],"correct_index":0}]`, "missing explanation"},
		{"one bad among good", `[` + validQuestionJSON + `,{"prompt":"","choices":["a","b"],"correct_index":0,"explanation":"x"}]`, "question 2"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseQuizQuestions(tc.raw, 5)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}
