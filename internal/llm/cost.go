package llm

import "strings"

// modelPricing maps model name prefixes to USD cost per million tokens.
type modelPricing struct {
	inputPerM  float64
	outputPerM float64
}

var pricing = map[string]modelPricing{
	"claude-opus":   {inputPerM: 15.0, outputPerM: 75.0},
	"claude-sonnet": {inputPerM: 3.0, outputPerM: 15.0},
	"claude-haiku":  {inputPerM: 0.80, outputPerM: 4.0},
	"gpt-4o-mini":   {inputPerM: 0.15, outputPerM: 0.60},
	"gpt-4o":        {inputPerM: 2.50, outputPerM: 10.0},
	"gpt-4":         {inputPerM: 30.0, outputPerM: 60.0},
}

// EstimateCost returns the approximate USD cost of a completion based on
// its token usage. Unknown models (local ones in particular) cost zero.
// The longest matching prefix wins, so gpt-4o-mini does not price as gpt-4.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	var best string
	for prefix := range pricing {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return 0
	}
	p := pricing[best]
	return float64(inputTokens)/1e6*p.inputPerM + float64(outputTokens)/1e6*p.outputPerM
}
