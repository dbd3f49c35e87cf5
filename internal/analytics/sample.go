package analytics

import (
	"math/rand"
	"time"

	"github.com/vnmchuo/llm-cost-dashboard/internal/pricing"
)

// sampleCategories are the series synthesized when a grouped query falls
// back to sample data.
var sampleCategories = map[string][]string{
	"provider":     {"openai", "anthropic", "google"},
	"organization": {"acme", "globex"},
	"project":      {"chatbot", "search", "summarizer"},
	"environment":  {"production", "staging", "development"},
	"user":         {"alice", "bob", "carol"},
}

const dateLayout = "2006-01-02"

// SampleUsage synthesizes usage rows spanning the query's date range so the
// dashboard always has something to render when the backend returns nothing.
// Shape is deterministic (one row per day, or one per day and category when
// grouping); magnitudes are randomized. Costs use the default rates for the
// given model.
func SampleUsage(q UsageQuery, model string) []UsageRow {
	start, err := time.Parse(dateLayout, q.StartDate)
	if err != nil {
		start = time.Now().AddDate(0, -1, 0)
	}
	end, err := time.Parse(dateLayout, q.EndDate)
	if err != nil {
		end = time.Now()
	}
	if end.Before(start) {
		start, end = end, start
	}

	promptRate, completionRate := pricing.Lookup(model)

	categories := []string{""}
	if q.GroupBy != "" && q.GroupBy != "model" {
		if known, ok := sampleCategories[q.GroupBy]; ok {
			categories = known
		} else {
			categories = []string{"other"}
		}
	}

	var rows []UsageRow
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for _, category := range categories {
			promptTokens := float64(50000 + rand.Intn(450000))
			completionTokens := float64(10000 + rand.Intn(90000))
			rows = append(rows, UsageRow{
				Date:                  d.Format(dateLayout),
				TotalPromptTokens:     promptTokens,
				TotalCompletionTokens: completionTokens,
				TotalCost:             promptTokens*promptRate + completionTokens*completionRate,
				Category:              category,
			})
		}
	}
	return rows
}
