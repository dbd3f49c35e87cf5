package pricing

import "strings"

// Rate holds per-token USD prices for one model family.
type Rate struct {
	Match      string  // case-insensitive substring matched against the model name
	Prompt     float64 // USD per prompt token
	Completion float64 // USD per completion token
}

// Fallback rates for models not in the table.
const (
	FallbackPrompt     = 0.0001
	FallbackCompletion = 0.0003
)

// defaultRates is checked top to bottom; the first substring match wins, so
// more specific families must be declared before their prefixes (gpt-4-turbo
// before gpt-4).
var defaultRates = []Rate{
	{"gpt-4o-mini", 0.00000015, 0.0000006},
	{"gpt-4o", 0.0000025, 0.00001},
	{"gpt-4-turbo", 0.00001, 0.00003},
	{"gpt-4", 0.00003, 0.00006},
	{"gpt-3.5-turbo", 0.0000005, 0.0000015},
	{"claude-3-opus", 0.000015, 0.000075},
	{"claude-3-sonnet", 0.000003, 0.000015},
	{"claude-3-haiku", 0.00000025, 0.00000125},
	{"gemini-1.5-pro", 0.0000035, 0.0000105},
	{"gemini", 0.0000005, 0.0000015},
	{"mistral-large", 0.000004, 0.000012},
	{"mistral", 0.000001, 0.000003},
	{"llama", 0.0000002, 0.0000002},
}

// Lookup returns the default prompt/completion rates for a model name.
// Matching is case-insensitive substring containment in table declaration
// order; unknown or empty names get the flat fallback rates.
func Lookup(model string) (prompt, completion float64) {
	m := strings.ToLower(model)
	if m != "" {
		for _, r := range defaultRates {
			if strings.Contains(m, r.Match) {
				return r.Prompt, r.Completion
			}
		}
	}
	return FallbackPrompt, FallbackCompletion
}
