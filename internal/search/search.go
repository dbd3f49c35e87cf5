package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vnmchuo/llm-cost-dashboard/internal/llm"
)

// Filters is the dashboard filter set extracted from one prompt. Values are
// always members of the enumerated dimension values the Searcher was built
// with; anything else the model invents is dropped.
type Filters struct {
	Model       *string `json:"model"`
	Provider    *string `json:"provider"`
	Environment *string `json:"environment"`
	DateRange   *string `json:"date_range"`
}

// Dimensions enumerates the legal values per filterable dimension.
type Dimensions struct {
	Models       []string
	Providers    []string
	Environments []string
	DateRanges   []string
}

// DefaultDateRanges are the relative windows the dashboard date picker offers.
var DefaultDateRanges = []string{"24h", "7d", "30d", "90d", "1y"}

type Searcher struct {
	client llm.Client
	dims   Dimensions
}

func New(client llm.Client, dims Dimensions) *Searcher {
	if len(dims.DateRanges) == 0 {
		dims.DateRanges = DefaultDateRanges
	}
	return &Searcher{client: client, dims: dims}
}

func (s *Searcher) Search(ctx context.Context, prompt string) (*Filters, error) {
	system := fmt.Sprintf(
		"You translate dashboard search prompts into filters. Pick values only from these lists, "+
			"or null when the prompt does not mention the dimension. "+
			"model: %s. provider: %s. environment: %s. date_range: %s.",
		strings.Join(s.dims.Models, ", "),
		strings.Join(s.dims.Providers, ", "),
		strings.Join(s.dims.Environments, ", "),
		strings.Join(s.dims.DateRanges, ", "),
	)

	raw, err := s.client.CompleteJSON(ctx, system, prompt, s.schema())
	if err != nil {
		return nil, fmt.Errorf("filter extraction failed: %w", err)
	}

	var f Filters
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("filter extraction failed: invalid payload: %w", err)
	}

	// The schema already constrains values, but the model is not trusted:
	// re-validate against the enums and null out anything foreign.
	f.Model = keepMember(f.Model, s.dims.Models)
	f.Provider = keepMember(f.Provider, s.dims.Providers)
	f.Environment = keepMember(f.Environment, s.dims.Environments)
	f.DateRange = keepMember(f.DateRange, s.dims.DateRanges)

	return &f, nil
}

func (s *Searcher) schema() llm.Schema {
	props := map[string]any{
		"model":       enumProperty(s.dims.Models),
		"provider":    enumProperty(s.dims.Providers),
		"environment": enumProperty(s.dims.Environments),
		"date_range":  enumProperty(s.dims.DateRanges),
	}
	body, _ := json.Marshal(map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	})
	return llm.Schema{Name: "search_filters", Schema: body}
}

func enumProperty(values []string) map[string]any {
	enum := make([]any, 0, len(values)+1)
	for _, v := range values {
		enum = append(enum, v)
	}
	enum = append(enum, nil)
	return map[string]any{"type": []string{"string", "null"}, "enum": enum}
}

func keepMember(v *string, allowed []string) *string {
	if v == nil {
		return nil
	}
	for _, a := range allowed {
		if strings.EqualFold(*v, a) {
			return &a
		}
	}
	return nil
}
