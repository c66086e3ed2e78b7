package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jcortez/winsmith/internal/config"
	"github.com/jcortez/winsmith/internal/llm"
)

// generator wraps the generation provider with the prompt contracts of the
// four refinement roles. Every method validates the provider's output
// strictly: malformed output is an error, never a silent fallback.
type generator struct {
	provider llm.Provider
	model    string
	cfg      config.RefineConfig
}

// Questions generates exactly three follow-up questions, one per fixed
// category, from the current content.
func (g *generator) Questions(ctx context.Context, content string) ([]Question, error) {
	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: questionsSystemPrompt},
			{Role: llm.RoleUser, Content: buildQuestionsPrompt(content, g.cfg.BannedWords)},
		},
		MaxTokens:   512,
		Temperature: 0.6,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}
	return parseQuestionsResponse(resp.Content)
}

// Merge rewrites content to incorporate the answered questions, under the
// relaxed length ceiling so no user-supplied fact is truncated away.
func (g *generator) Merge(ctx context.Context, content string, answered []AnsweredQuestion) (string, error) {
	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: mergeSystemPrompt},
			{Role: llm.RoleUser, Content: buildMergePrompt(content, answered, g.cfg.RelaxedMaxChars, g.cfg.BannedWords)},
		},
		MaxTokens:   512,
		Temperature: 0.4,
	})
	if err != nil {
		return "", err
	}
	merged := strings.TrimSpace(resp.Content)
	if merged == "" {
		return "", fmt.Errorf("empty merge output")
	}
	return merged, nil
}

// Critique produces a structured style-only critique of the given content.
func (g *generator) Critique(ctx context.Context, content string) (*Feedback, error) {
	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: critiqueSystemPrompt},
			{Role: llm.RoleUser, Content: buildCritiquePrompt(content)},
		},
		MaxTokens:   512,
		Temperature: 0.3,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}
	return parseCritiqueResponse(resp.Content)
}

// Polish applies the critique's improvements under the strict ceiling
// while preserving every fact verbatim.
func (g *generator) Polish(ctx context.Context, content string, improvements []string) (string, error) {
	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: polishSystemPrompt},
			{Role: llm.RoleUser, Content: buildPolishPrompt(content, improvements, g.cfg.StrictMaxChars, g.cfg.BannedWords)},
		},
		MaxTokens:   512,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	polished := strings.TrimSpace(resp.Content)
	if polished == "" {
		return "", fmt.Errorf("empty polish output")
	}
	return polished, nil
}

// extractJSON cuts the first balanced-looking JSON object out of a
// response that may be wrapped in markdown fences or prose.
func extractJSON(content string) (string, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return content[start : end+1], nil
}

type questionsResponse struct {
	Questions []struct {
		Category string `json:"category"`
		Question string `json:"question"`
	} `json:"questions"`
}

func parseQuestionsResponse(content string) ([]Question, error) {
	jsonStr, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var parsed questionsResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshalling questions: %w", err)
	}
	if len(parsed.Questions) != 3 {
		return nil, fmt.Errorf("expected exactly 3 questions, got %d", len(parsed.Questions))
	}

	want := map[QuestionCategory]bool{
		CategoryQuantitative: false,
		CategoryLeadership:   false,
		CategoryStrategic:    false,
	}
	var questions []Question
	for _, q := range parsed.Questions {
		cat := QuestionCategory(strings.ToLower(strings.TrimSpace(q.Category)))
		seen, ok := want[cat]
		if !ok {
			return nil, fmt.Errorf("unknown question category %q", q.Category)
		}
		if seen {
			return nil, fmt.Errorf("duplicate question category %q", q.Category)
		}
		if strings.TrimSpace(q.Question) == "" {
			return nil, fmt.Errorf("blank question for category %q", q.Category)
		}
		want[cat] = true
		questions = append(questions, Question{
			ID:       uuid.New().String(),
			Category: cat,
			Text:     strings.TrimSpace(q.Question),
		})
	}
	return questions, nil
}

func parseCritiqueResponse(content string) (*Feedback, error) {
	jsonStr, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var fb Feedback
	if err := json.Unmarshal([]byte(jsonStr), &fb); err != nil {
		return nil, fmt.Errorf("unmarshalling critique: %w", err)
	}
	if fb.Score < 0 || fb.Score > 10 {
		return nil, fmt.Errorf("critique score %d out of range", fb.Score)
	}
	if len(fb.Strengths) == 0 {
		return nil, fmt.Errorf("critique missing strengths")
	}
	return &fb, nil
}
