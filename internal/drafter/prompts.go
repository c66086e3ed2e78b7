package drafter

import (
	"fmt"
	"strings"

	"github.com/jcortez/winsmith/internal/entry"
)

const draftSystemPrompt = `You write achievement statements from raw notes. Each note has an action (what was done), an impact (what it affected), and a result (what came of it). Produce one narrative statement covering all the notes you are given. Rules:

- Use only facts from the notes; never invent numbers, names, or outcomes.
- Keep numbers, names, and dollar amounts exactly as written.
- Active voice, past tense, no first person.

Respond with the statement only: no preamble, no quotes, no commentary.`

func buildDraftPrompt(entries []entry.Entry, maxChars int, banned []string) string {
	var b strings.Builder
	b.WriteString("## Notes\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. [%s] action: %s", i+1, e.Category, e.Action)
		if e.Impact != "" {
			fmt.Fprintf(&b, "; impact: %s", e.Impact)
		}
		if e.Result != "" {
			fmt.Fprintf(&b, "; result: %s", e.Result)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nTarget length: at most %d characters.\n", maxChars)
	if len(banned) > 0 {
		fmt.Fprintf(&b, "Avoid these words entirely: %s.\n", strings.Join(banned, ", "))
	}
	return b.String()
}
