package refine

import (
	"strings"
	"testing"
)

func TestParseQuestionsResponse(t *testing.T) {
	raw := "Here are the questions:\n```json\n" + questionsJSON + "\n```"
	questions, err := parseQuestionsResponse(raw)
	if err != nil {
		t.Fatalf("parseQuestionsResponse: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}
	for _, q := range questions {
		if q.ID == "" || q.Text == "" {
			t.Errorf("incomplete question: %+v", q)
		}
	}
}

func TestParseQuestionsResponseRejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no json", "sorry, I cannot help with that"},
		{"too few", `{"questions":[{"category":"quantitative","question":"How many?"}]}`},
		{"unknown category", `{"questions":[
			{"category":"quantitative","question":"a"},
			{"category":"leadership","question":"b"},
			{"category":"financial","question":"c"}]}`},
		{"duplicate category", `{"questions":[
			{"category":"quantitative","question":"a"},
			{"category":"quantitative","question":"b"},
			{"category":"strategic","question":"c"}]}`},
		{"blank question", `{"questions":[
			{"category":"quantitative","question":"a"},
			{"category":"leadership","question":"  "},
			{"category":"strategic","question":"c"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseQuestionsResponse(tt.raw); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestParseQuestionsResponseNormalizesCategories(t *testing.T) {
	raw := `{"questions":[
		{"category":" Quantitative ","question":"a"},
		{"category":"LEADERSHIP","question":"b"},
		{"category":"strategic","question":"c"}]}`
	questions, err := parseQuestionsResponse(raw)
	if err != nil {
		t.Fatalf("parseQuestionsResponse: %v", err)
	}
	if questions[0].Category != CategoryQuantitative {
		t.Errorf("category not normalized: %q", questions[0].Category)
	}
}

func TestParseCritiqueResponse(t *testing.T) {
	fb, err := parseCritiqueResponse("```json\n" + critiqueJSON + "\n```")
	if err != nil {
		t.Fatalf("parseCritiqueResponse: %v", err)
	}
	if fb.Score != 7 {
		t.Errorf("expected score 7, got %d", fb.Score)
	}
	if len(fb.Strengths) != 1 || len(fb.Improvements) != 1 {
		t.Errorf("unexpected critique shape: %+v", fb)
	}
}

func TestParseCritiqueResponseRejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no json", "looks good to me"},
		{"score too high", `{"score":11,"strengths":["x"],"improvements":[]}`},
		{"score negative", `{"score":-1,"strengths":["x"],"improvements":[]}`},
		{"no strengths", `{"score":5,"strengths":[],"improvements":["y"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseCritiqueResponse(tt.raw); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	got, err := extractJSON("prefix {\"a\": {\"b\": 1}} suffix")
	if err != nil {
		t.Fatalf("extractJSON: %v", err)
	}
	if got != `{"a": {"b": 1}}` {
		t.Errorf("wrong slice: %q", got)
	}

	if _, err := extractJSON("no braces here"); err == nil {
		t.Error("expected error without an object")
	}
}

func TestBuildMergePromptCarriesAnswers(t *testing.T) {
	answered := []AnsweredQuestion{
		{Question: Question{Category: CategoryQuantitative, Text: "How many?"}, Answer: "12 personnel"},
		{Question: Question{Category: CategoryStrategic, Text: "What impact?"}, Answer: "saved $40K"},
	}
	prompt := buildMergePrompt("Maintained records", answered, 600, nil)
	for _, want := range []string{"Maintained records", "How many?", "12 personnel", "saved $40K", "600"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("merge prompt missing %q", want)
		}
	}
}

func TestBuildPolishPromptCarriesImprovements(t *testing.T) {
	prompt := buildPolishPrompt("Led 12 personnel", []string{"tighten the opening"}, 350, []string{"spearheaded"})
	for _, want := range []string{"Led 12 personnel", "tighten the opening", "350", "spearheaded"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("polish prompt missing %q", want)
		}
	}
}
