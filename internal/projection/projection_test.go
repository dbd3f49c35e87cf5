package projection

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/vnmchuo/llm-cost-dashboard/internal/analytics"
	"github.com/vnmchuo/llm-cost-dashboard/internal/extract"
	"github.com/vnmchuo/llm-cost-dashboard/internal/pricing"
)

func f64(v float64) *float64 { return &v }
func str(s string) *string   { return &s }

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestCalculate_UngroupedAggregatesAndDiscounts(t *testing.T) {
	rows := []analytics.UsageRow{
		{Date: "2025-07-01", TotalPromptTokens: 100, TotalCompletionTokens: 20, TotalCost: 1},
		{Date: "2025-07-01", TotalPromptTokens: 50, TotalCompletionTokens: 10, TotalCost: 0.5},
	}
	p := extract.CostParameters{
		PromptTokenCost:     f64(0.00003),
		CompletionTokenCost: f64(0.00006),
		Discount:            10,
	}

	r := Calculate(rows, p)
	if len(r.Daily) != 1 {
		t.Fatalf("expected one aggregated day, got %d", len(r.Daily))
	}

	want := (150*0.00003 + 30*0.00006) * 0.9
	if !approx(r.Daily[0].PredictedCost, want) {
		t.Errorf("expected predicted %v, got %v", want, r.Daily[0].PredictedCost)
	}
	if !approx(r.Daily[0].ActualCost, 1.5) {
		t.Errorf("expected actual 1.5, got %v", r.Daily[0].ActualCost)
	}
}

func TestCalculate_VolumeChangeScalesTokens(t *testing.T) {
	rows := []analytics.UsageRow{
		{Date: "2025-07-01", TotalPromptTokens: 1000, TotalCompletionTokens: 0, TotalCost: 1},
	}
	p := extract.CostParameters{
		PromptTokenCost:     f64(0.001),
		CompletionTokenCost: f64(0.002),
		VolumeChange:        50,
	}

	r := Calculate(rows, p)
	if !approx(r.Daily[0].PredictedCost, 1000*1.5*0.001) {
		t.Errorf("expected volume multiplier 1.5 applied, got %v", r.Daily[0].PredictedCost)
	}
}

func TestCalculate_DefaultRatesFromModelTable(t *testing.T) {
	rows := []analytics.UsageRow{
		{Date: "2025-07-01", TotalPromptTokens: 100, TotalCompletionTokens: 100, TotalCost: 0},
	}
	p := extract.CostParameters{Model: str("gpt-4")}

	r := Calculate(rows, p)
	want := 100*0.00003 + 100*0.00006
	if !approx(r.Daily[0].PredictedCost, want) {
		t.Errorf("expected gpt-4 default rates, got %v", r.Daily[0].PredictedCost)
	}
	if math.IsNaN(r.Daily[0].PredictedCost) {
		t.Errorf("predicted cost must never be NaN")
	}
}

func TestCalculate_NilModelUsesFallbackRates(t *testing.T) {
	rows := []analytics.UsageRow{
		{Date: "2025-07-01", TotalPromptTokens: 10, TotalCompletionTokens: 10, TotalCost: 0},
	}

	r := Calculate(rows, extract.CostParameters{})
	want := 10*pricing.FallbackPrompt + 10*pricing.FallbackCompletion
	if !approx(r.Daily[0].PredictedCost, want) {
		t.Errorf("expected flat fallback rates, got %v", r.Daily[0].PredictedCost)
	}
}

func TestCalculate_MixedExplicitAndDefaultRates(t *testing.T) {
	rows := []analytics.UsageRow{
		{Date: "2025-07-01", TotalPromptTokens: 100, TotalCompletionTokens: 100, TotalCost: 0},
	}
	p := extract.CostParameters{Model: str("gpt-4"), PromptTokenCost: f64(0.001)}

	r := Calculate(rows, p)
	want := 100*0.001 + 100*0.00006 // explicit prompt rate, default completion rate
	if !approx(r.Daily[0].PredictedCost, want) {
		t.Errorf("expected mixed rates, got %v", r.Daily[0].PredictedCost)
	}
}

func TestCalculate_SortedAscendingByDate(t *testing.T) {
	rows := []analytics.UsageRow{
		{Date: "2025-07-03", TotalCost: 3},
		{Date: "2025-07-01", TotalCost: 1},
		{Date: "2025-07-02", TotalCost: 2},
	}

	r := Calculate(rows, extract.CostParameters{})
	for i := 1; i < len(r.Daily); i++ {
		if r.Daily[i-1].Date >= r.Daily[i].Date {
			t.Errorf("series not ascending at %d: %s >= %s", i, r.Daily[i-1].Date, r.Daily[i].Date)
		}
	}
}

func TestCalculate_Idempotent(t *testing.T) {
	rows := []analytics.UsageRow{
		{Date: "2025-07-01", TotalPromptTokens: 100, TotalCompletionTokens: 20, TotalCost: 1},
		{Date: "2025-07-02", TotalPromptTokens: 200, TotalCompletionTokens: 40, TotalCost: 2},
	}
	p := extract.CostParameters{Model: str("gpt-4"), Discount: 5, VolumeChange: 10}

	first := Calculate(rows, p)
	second := Calculate(rows, p)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("calculator must be pure: results differ across identical calls")
	}
}

func TestCalculate_GroupedComposition(t *testing.T) {
	rows := []analytics.UsageRow{
		{Date: "2025-07-01", TotalCost: 1, Category: "openai"},
		{Date: "2025-07-01", TotalCost: 2, Category: "anthropic"},
		{Date: "2025-07-02", TotalCost: 3, Category: "openai"},
	}
	p := extract.CostParameters{GroupBy: "provider"}

	r := Calculate(rows, p)
	if len(r.Daily) != 0 {
		t.Errorf("grouped mode must not emit the ungrouped series")
	}
	if len(r.Grouped) != 2 {
		t.Fatalf("expected 2 grouped days, got %d", len(r.Grouped))
	}
	if !approx(r.Grouped[0].Costs["anthropic"], 2) {
		t.Errorf("unexpected anthropic cost %v", r.Grouped[0].Costs["anthropic"])
	}
	if !reflect.DeepEqual(r.Categories, []string{"anthropic", "openai"}) {
		t.Errorf("unexpected categories %v", r.Categories)
	}

	if !approx(r.Summary.ActualTotal, 6) || !approx(r.Summary.PredictedTotal, 6) {
		t.Errorf("grouped totals must both equal the cost sum, got %+v", r.Summary)
	}
	if r.Summary.Difference != 0 || r.Summary.PercentChange != 0 {
		t.Errorf("grouped mode computes no projection delta, got %+v", r.Summary)
	}
}

func TestCalculate_GroupByModelStaysUngrouped(t *testing.T) {
	rows := []analytics.UsageRow{{Date: "2025-07-01", TotalCost: 1}}
	r := Calculate(rows, extract.CostParameters{GroupBy: "model"})
	if len(r.Daily) != 1 || len(r.Grouped) != 0 {
		t.Errorf("group_by=model selects the ungrouped mode")
	}
}

func TestCalculate_ZeroActualGuardsPercentChange(t *testing.T) {
	rows := []analytics.UsageRow{
		{Date: "2025-07-01", TotalPromptTokens: 100, TotalCompletionTokens: 0, TotalCost: 0},
	}
	r := Calculate(rows, extract.CostParameters{PromptTokenCost: f64(0.001), CompletionTokenCost: f64(0.001)})
	if math.IsNaN(r.Summary.PercentChange) || math.IsInf(r.Summary.PercentChange, 0) {
		t.Errorf("percent change must stay finite with zero actual cost, got %v", r.Summary.PercentChange)
	}
}

func TestGroupedCost_MarshalsFlat(t *testing.T) {
	g := GroupedCost{Date: "2025-07-01", Costs: map[string]float64{"openai": 1.5}}
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var flat map[string]any
	json.Unmarshal(data, &flat)
	if flat["date"] != "2025-07-01" || flat["openai"] != 1.5 {
		t.Errorf("expected flat record, got %s", data)
	}
}
