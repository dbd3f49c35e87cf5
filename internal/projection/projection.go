package projection

import (
	"encoding/json"
	"sort"

	"github.com/vnmchuo/llm-cost-dashboard/internal/analytics"
	"github.com/vnmchuo/llm-cost-dashboard/internal/extract"
	"github.com/vnmchuo/llm-cost-dashboard/internal/pricing"
)

// DailyCost is one actual-vs-projected point of the ungrouped series.
type DailyCost struct {
	Date          string  `json:"date"`
	ActualCost    float64 `json:"actualCost"`
	PredictedCost float64 `json:"predictedCost"`
}

// GroupedCost is one wide per-date record of the grouped series, keyed by
// category name. It marshals flat: {"date": ..., "<category>": cost, ...}.
type GroupedCost struct {
	Date  string
	Costs map[string]float64
}

func (g GroupedCost) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(g.Costs)+1)
	flat["date"] = g.Date
	for category, cost := range g.Costs {
		flat[category] = cost
	}
	return json.Marshal(flat)
}

// Summary aggregates a computed series. In grouped mode actual and
// predicted totals are equal and difference/percent change are zero, since
// that mode shows composition, not projection.
type Summary struct {
	ActualTotal    float64 `json:"actualTotal"`
	PredictedTotal float64 `json:"predictedTotal"`
	Difference     float64 `json:"difference"`
	PercentChange  float64 `json:"percentChange"`
}

// Result is a full calculator output. Exactly one of Daily or Grouped is
// populated, matching the selected mode.
type Result struct {
	Daily      []DailyCost   `json:"daily_costs,omitempty"`
	Grouped    []GroupedCost `json:"grouped_costs,omitempty"`
	Categories []string      `json:"categories,omitempty"`
	Summary    Summary       `json:"summary"`
}

// Calculate derives the daily cost series and summary from raw usage rows
// and extracted parameters. Pure: identical inputs give identical outputs.
// Grouped mode is selected when group_by names any dimension other than
// model; all costs are unrounded floating-point USD.
func Calculate(rows []analytics.UsageRow, p extract.CostParameters) Result {
	if p.GroupBy != "" && p.GroupBy != "model" {
		return calculateGrouped(rows)
	}
	return calculateUngrouped(rows, p)
}

func calculateUngrouped(rows []analytics.UsageRow, p extract.CostParameters) Result {
	type dayTotals struct {
		promptTokens     float64
		completionTokens float64
		actualCost       float64
	}
	byDate := make(map[string]*dayTotals)
	for _, row := range rows {
		d := byDate[row.Date]
		if d == nil {
			d = &dayTotals{}
			byDate[row.Date] = d
		}
		d.promptTokens += row.TotalPromptTokens
		d.completionTokens += row.TotalCompletionTokens
		d.actualCost += row.TotalCost
	}

	promptRate, completionRate := resolveRates(p)
	volumeMultiplier := 1 + p.VolumeChange/100

	daily := make([]DailyCost, 0, len(byDate))
	for date, d := range byDate {
		predicted := d.promptTokens*volumeMultiplier*promptRate +
			d.completionTokens*volumeMultiplier*completionRate
		if p.Discount > 0 {
			predicted *= 1 - p.Discount/100
		}
		daily = append(daily, DailyCost{
			Date:          date,
			ActualCost:    d.actualCost,
			PredictedCost: predicted,
		})
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	var summary Summary
	for _, d := range daily {
		summary.ActualTotal += d.ActualCost
		summary.PredictedTotal += d.PredictedCost
	}
	summary.Difference = summary.PredictedTotal - summary.ActualTotal
	if summary.ActualTotal != 0 {
		summary.PercentChange = summary.Difference / summary.ActualTotal * 100
	}

	return Result{Daily: daily, Summary: summary}
}

func calculateGrouped(rows []analytics.UsageRow) Result {
	byDate := make(map[string]map[string]float64)
	categorySet := make(map[string]struct{})
	var total float64

	for _, row := range rows {
		category := row.Category
		if category == "" {
			category = "unknown"
		}
		day := byDate[row.Date]
		if day == nil {
			day = make(map[string]float64)
			byDate[row.Date] = day
		}
		day[category] += row.TotalCost
		categorySet[category] = struct{}{}
		total += row.TotalCost
	}

	grouped := make([]GroupedCost, 0, len(byDate))
	for date, costs := range byDate {
		grouped = append(grouped, GroupedCost{Date: date, Costs: costs})
	}
	sort.Slice(grouped, func(i, j int) bool { return grouped[i].Date < grouped[j].Date })

	categories := make([]string, 0, len(categorySet))
	for c := range categorySet {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	return Result{
		Grouped:    grouped,
		Categories: categories,
		Summary:    Summary{ActualTotal: total, PredictedTotal: total},
	}
}

// resolveRates picks explicit parameter rates when present and falls back to
// the per-model default table otherwise, field by field.
func resolveRates(p extract.CostParameters) (prompt, completion float64) {
	model := ""
	if p.Model != nil {
		model = *p.Model
	}
	defaultPrompt, defaultCompletion := pricing.Lookup(model)

	prompt, completion = defaultPrompt, defaultCompletion
	if p.PromptTokenCost != nil {
		prompt = *p.PromptTokenCost
	}
	if p.CompletionTokenCost != nil {
		completion = *p.CompletionTokenCost
	}
	return prompt, completion
}
