package refine

import (
	"fmt"
	"strings"
)

const questionsSystemPrompt = `You are a writing coach helping someone strengthen an achievement statement. Given a draft statement, ask exactly three follow-up questions that would surface missing substance, one per category:

- quantitative: a question digging for concrete numbers (people, money, time, scale)
- leadership: a question digging for who the writer directed, trained, or influenced
- strategic: a question digging for the wider mission or goal the work served

You MUST respond with valid JSON matching this schema:
{
  "questions": [
    {"category": "quantitative", "question": "..."},
    {"category": "leadership", "question": "..."},
    {"category": "strategic", "question": "..."}
  ]
}

Ask about what the draft does NOT already say. Never ask yes/no questions.`

const mergeSystemPrompt = `You rewrite achievement statements to incorporate new facts supplied by the writer. Rules:

- Keep every fact already in the statement.
- Work in every fact implied by each answer, keeping numbers, names, and dollar amounts exactly as written.
- Match the register and voice of the original statement.
- Never invent facts that appear in neither the statement nor the answers.

Respond with the rewritten statement only: no preamble, no quotes, no commentary.`

const critiqueSystemPrompt = `You are a style reviewer for achievement statements. Critique phrasing, clarity, and structure ONLY. You must never suggest changing, removing, or rounding any concrete fact, number, name, or scope term in the statement.

You MUST respond with valid JSON matching this schema:
{
  "score": 7,
  "strengths": ["..."],
  "improvements": ["..."]
}

score is an integer from 0 to 10. strengths lists what already works. improvements lists phrasing-level suggestions only.`

const polishSystemPrompt = `You apply style suggestions to an achievement statement under a hard length ceiling. Rules:

- Preserve every concrete fact verbatim: every number, dollar amount, proper noun, and named entity in the input must appear unchanged in the output.
- Apply only the phrasing suggestions you are given.
- If the ceiling and fact preservation conflict, preserve the facts and exceed the ceiling as little as possible.

Respond with the polished statement only: no preamble, no quotes, no commentary.`

func buildQuestionsPrompt(content string, banned []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Current Statement\n%s\n", content)
	writeBannedWords(&b, banned)
	b.WriteString("\nAsk your three follow-up questions.")
	return b.String()
}

func buildMergePrompt(content string, answered []AnsweredQuestion, relaxedMax int, banned []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Current Statement\n%s\n", content)
	b.WriteString("\n## Writer's Answers\n")
	for _, qa := range answered {
		fmt.Fprintf(&b, "Q (%s): %s\nA: %s\n", qa.Question.Category, qa.Question.Text, qa.Answer)
	}
	fmt.Fprintf(&b, "\nTarget length: at most %d characters. This is a soft target; never drop a fact to meet it.\n", relaxedMax)
	writeBannedWords(&b, banned)
	return b.String()
}

func buildCritiquePrompt(content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Statement To Review\n%s\n", content)
	b.WriteString("\nCritique the style. Do not question any fact.")
	return b.String()
}

func buildPolishPrompt(content string, improvements []string, strictMax int, banned []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Statement\n%s\n", content)
	b.WriteString("\n## Style Suggestions To Apply\n")
	if len(improvements) == 0 {
		b.WriteString("(none: tighten wording only)\n")
	}
	for _, imp := range improvements {
		fmt.Fprintf(&b, "- %s\n", imp)
	}
	fmt.Fprintf(&b, "\nHard length ceiling: %d characters.\n", strictMax)
	writeBannedWords(&b, banned)
	return b.String()
}

func writeBannedWords(b *strings.Builder, banned []string) {
	if len(banned) == 0 {
		return
	}
	fmt.Fprintf(b, "\nAvoid these words entirely: %s.\n", strings.Join(banned, ", "))
}
