package refine

import (
	"regexp"
	"strings"
)

// numberTokenRe matches concrete quantity tokens: plain numbers, dollar
// amounts, and percentages, with optional thousands separators.
var numberTokenRe = regexp.MustCompile(`\$?\d[\d,]*(?:\.\d+)?%?`)

// acronymRe matches all-caps named entities of two or more letters.
var acronymRe = regexp.MustCompile(`\b[A-Z][A-Z0-9]{1,}\b`)

// factTokens extracts the concrete fact tokens of a draft: quantities and
// acronym entities. Order follows first appearance; duplicates collapse.
func factTokens(s string) []string {
	var tokens []string
	seen := map[string]bool{}
	for _, m := range numberTokenRe.FindAllString(s, -1) {
		if !seen[m] {
			seen[m] = true
			tokens = append(tokens, m)
		}
	}
	for _, m := range acronymRe.FindAllString(s, -1) {
		if !seen[m] {
			seen[m] = true
			tokens = append(tokens, m)
		}
	}
	return tokens
}

// missingFacts returns the fact tokens of src that do not appear verbatim
// in dst. An empty result means dst preserved every concrete fact.
func missingFacts(src, dst string) []string {
	var missing []string
	for _, tok := range factTokens(src) {
		if !strings.Contains(dst, tok) {
			missing = append(missing, tok)
		}
	}
	return missing
}
