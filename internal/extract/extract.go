package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vnmchuo/llm-cost-dashboard/internal/llm"
	"github.com/vnmchuo/llm-cost-dashboard/internal/timeparse"
)

// CostParameters is the structured form of one natural-language cost query.
// Field names follow the dashboard wire format. Immutable once produced.
type CostParameters struct {
	Model               *string  `json:"model"`
	PromptTokenCost     *float64 `json:"promptTokenCost"`
	CompletionTokenCost *float64 `json:"completionTokenCost"`
	Discount            float64  `json:"discount"`
	Timeframe           string   `json:"timeframe"`
	VolumeChange        float64  `json:"volumeChange"`
	StartDate           string   `json:"start_date"`
	EndDate             string   `json:"end_date"`
	GroupBy             string   `json:"group_by,omitempty"`
	Organization        *string  `json:"organization,omitempty"`
	Project             *string  `json:"project,omitempty"`
	Environment         *string  `json:"environment,omitempty"`
	Provider            *string  `json:"provider,omitempty"`
	User                *string  `json:"user,omitempty"`
}

// rawParameters mirrors the extraction schema: every field optional, so
// defaulting happens in exactly one place after decode.
type rawParameters struct {
	Model               *string  `json:"model"`
	PromptTokenCost     *float64 `json:"promptTokenCost"`
	CompletionTokenCost *float64 `json:"completionTokenCost"`
	Discount            *float64 `json:"discount"`
	Timeframe           *string  `json:"timeframe"`
	VolumeChange        *float64 `json:"volumeChange"`
	StartDate           *string  `json:"start_date"`
	EndDate             *string  `json:"end_date"`
	GroupBy             *string  `json:"group_by"`
	Organization        *string  `json:"organization"`
	Project             *string  `json:"project"`
	Environment         *string  `json:"environment"`
	Provider            *string  `json:"provider"`
	User                *string  `json:"user"`
}

const dateLayout = "2006-01-02"

var parameterSchema = llm.Schema{
	Name:   "cost_parameters",
	Strict: false,
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"model": {"type": ["string", "null"]},
			"promptTokenCost": {"type": ["number", "null"]},
			"completionTokenCost": {"type": ["number", "null"]},
			"discount": {"type": ["number", "null"], "minimum": 0, "maximum": 100},
			"timeframe": {"type": ["string", "null"]},
			"volumeChange": {"type": ["number", "null"]},
			"start_date": {"type": ["string", "null"]},
			"end_date": {"type": ["string", "null"]},
			"group_by": {"type": ["string", "null"], "enum": ["model", "provider", "organization", "project", "environment", "user", null]},
			"organization": {"type": ["string", "null"]},
			"project": {"type": ["string", "null"]},
			"environment": {"type": ["string", "null"]},
			"provider": {"type": ["string", "null"]},
			"user": {"type": ["string", "null"]}
		},
		"additionalProperties": false
	}`),
}

// Extractor turns free-text cost queries into CostParameters via one LLM
// call. No retries: callers re-submit on failure.
type Extractor struct {
	client llm.Client
	now    func() time.Time
}

func New(client llm.Client) *Extractor {
	return &Extractor{client: client, now: time.Now}
}

// NewWithClock pins the reference instant, used by tests.
func NewWithClock(client llm.Client, now func() time.Time) *Extractor {
	return &Extractor{client: client, now: now}
}

func (e *Extractor) Extract(ctx context.Context, query string) (*CostParameters, error) {
	today := e.now()

	system := fmt.Sprintf(
		"You extract cost analysis parameters from user queries about LLM usage. "+
			"Today's date is %s. Extract only fields the user explicitly mentions: "+
			"model, promptTokenCost and completionTokenCost (USD per token), discount (percent 0-100), "+
			"timeframe (the user's own words for the period), volumeChange (percent), "+
			"start_date and end_date (YYYY-MM-DD), group_by, and the dimension filters "+
			"organization, project, environment, provider, user. Leave everything else null.",
		today.Format(dateLayout),
	)

	raw, err := e.client.CompleteJSON(ctx, system, query, parameterSchema)
	if err != nil {
		return nil, fmt.Errorf("parameter extraction failed: %w", err)
	}

	var rp rawParameters
	if err := json.Unmarshal(raw, &rp); err != nil {
		return nil, fmt.Errorf("parameter extraction failed: invalid payload: %w", err)
	}

	return applyDefaults(rp, today), nil
}

// applyDefaults fills every optional field immediately after decode. Null
// model and token costs pass through as null so the projection layer can
// substitute per-model default rates.
func applyDefaults(rp rawParameters, today time.Time) *CostParameters {
	p := &CostParameters{
		Model:               rp.Model,
		PromptTokenCost:     rp.PromptTokenCost,
		CompletionTokenCost: rp.CompletionTokenCost,
		Timeframe:           "last month",
		Organization:        rp.Organization,
		Project:             rp.Project,
		Environment:         rp.Environment,
		Provider:            rp.Provider,
		User:                rp.User,
	}
	if rp.Discount != nil {
		p.Discount = *rp.Discount
	}
	if rp.VolumeChange != nil {
		p.VolumeChange = *rp.VolumeChange
	}
	if rp.Timeframe != nil && *rp.Timeframe != "" {
		p.Timeframe = *rp.Timeframe
	}
	if rp.GroupBy != nil {
		p.GroupBy = *rp.GroupBy
	}

	if rp.StartDate != nil && *rp.StartDate != "" {
		p.StartDate = *rp.StartDate
	}
	if rp.EndDate != nil && *rp.EndDate != "" {
		p.EndDate = *rp.EndDate
	}
	if p.StartDate == "" {
		r := timeparse.Parse(p.Timeframe, today)
		p.StartDate = r.Start[:len(dateLayout)]
		if p.EndDate == "" {
			p.EndDate = r.End[:len(dateLayout)]
		}
	}
	if p.EndDate == "" {
		p.EndDate = today.Format(dateLayout)
	}
	if p.EndDate < p.StartDate {
		p.StartDate, p.EndDate = p.EndDate, p.StartDate
	}

	return p
}
