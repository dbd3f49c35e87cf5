package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vnmchuo/llm-cost-dashboard/internal/analytics"
	"github.com/vnmchuo/llm-cost-dashboard/internal/auth"
	"github.com/vnmchuo/llm-cost-dashboard/internal/extract"
	"github.com/vnmchuo/llm-cost-dashboard/internal/projection"
	"github.com/vnmchuo/llm-cost-dashboard/internal/search"
	"github.com/vnmchuo/llm-cost-dashboard/internal/timeparse"
	"github.com/vnmchuo/llm-cost-dashboard/pkg/ratelimit"
)

// Extractor turns a free-text query into cost parameters.
type Extractor interface {
	Extract(ctx context.Context, query string) (*extract.CostParameters, error)
}

// Searcher turns a free-text prompt into dashboard filters.
type Searcher interface {
	Search(ctx context.Context, prompt string) (*search.Filters, error)
}

// Embedder produces embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// UsageReader is the analytics backend surface the handlers consume.
type UsageReader interface {
	FetchUsage(ctx context.Context, q analytics.UsageQuery) ([]analytics.UsageRow, error)
	FetchTotals(ctx context.Context, q analytics.UsageQuery) (*analytics.Totals, error)
	SearchMessages(ctx context.Context, embedding []float64, limit int) ([]analytics.Message, error)
}

type Handler struct {
	extractor Extractor
	searcher  Searcher
	embedder  Embedder
	usage     UsageReader
	limiter   *ratelimit.Limiter
	tracer    trace.Tracer
}

func NewHandler(extractor Extractor, searcher Searcher, embedder Embedder, usage UsageReader, limiter *ratelimit.Limiter, tracer trace.Tracer) *Handler {
	return &Handler{
		extractor: extractor,
		searcher:  searcher,
		embedder:  embedder,
		usage:     usage,
		limiter:   limiter,
		tracer:    tracer,
	}
}

// dimensions filterable on the usage endpoint, passed straight through to
// the analytics backend as comma-joined values.
var filterDimensions = []string{"model", "provider", "organization", "project", "environment", "user"}

// HandleExtractParameters implements POST /api/extract-cost-parameters.
func (h *Handler) HandleExtractParameters(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}
	if !h.allowLLMCall(w, r, orgID) {
		return
	}

	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "api.extract_cost_parameters")
	defer span.End()
	span.SetAttributes(
		attribute.String("org_id", orgID),
		attribute.String("request_id", auth.GetRequestID(ctx)),
	)

	params, err := h.extractor.Extract(ctx, body.Query)
	if err != nil {
		log.Printf("extract-cost-parameters: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to extract cost parameters")
		return
	}

	writeJSON(w, http.StatusOK, params)
}

// HandleSearch implements POST /api/search.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}
	if !h.allowLLMCall(w, r, orgID) {
		return
	}

	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "api.search")
	defer span.End()
	span.SetAttributes(attribute.String("org_id", orgID))

	filters, err := h.searcher.Search(ctx, body.Prompt)
	if err != nil {
		log.Printf("search: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to extract filters")
		return
	}

	writeJSON(w, http.StatusOK, filters)
}

// HandleGenerateEmbedding implements POST /api/generate-embedding.
func (h *Handler) HandleGenerateEmbedding(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}
	if !h.allowLLMCall(w, r, orgID) {
		return
	}

	var body struct {
		Text any `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text, isString := body.Text.(string)
	if !isString || text == "" {
		writeError(w, http.StatusBadRequest, "text must be a non-empty string")
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "api.generate_embedding")
	defer span.End()
	span.SetAttributes(attribute.String("org_id", orgID))

	vec, err := h.embedder.Embed(ctx, text)
	if err != nil {
		log.Printf("generate-embedding: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to generate embedding")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"embedding": vec})
}

// HandleUsage implements GET /api/usage. Backend failures and empty result
// sets both degrade to sample data so the dashboard always renders.
func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "api.usage")
	defer span.End()
	span.SetAttributes(attribute.String("org_id", orgID))

	q := usageQueryFromParams(r)
	model := r.URL.Query().Get("model")

	rows, err := h.usage.FetchUsage(ctx, q)
	sampled := false
	if err != nil || len(rows) == 0 {
		if err != nil {
			log.Printf("usage: falling back to sample data: %v", err)
		}
		rows = analytics.SampleUsage(q, model)
		sampled = true
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":        rows,
		"sample_data": sampled,
	})
}

// HandleCostPrediction implements POST /api/cost-prediction: fetch usage for
// the parameter window (sample fallback included) and run the projection.
func (h *Handler) HandleCostPrediction(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}

	var params extract.CostParameters
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	normalizeWindow(&params)

	ctx, span := h.tracer.Start(r.Context(), "api.cost_prediction")
	defer span.End()
	span.SetAttributes(
		attribute.String("org_id", orgID),
		attribute.String("group_by", params.GroupBy),
	)

	q := usageQueryFromParameters(params)
	model := ""
	if params.Model != nil {
		model = *params.Model
	}

	rows, err := h.usage.FetchUsage(ctx, q)
	sampled := false
	if err != nil || len(rows) == 0 {
		if err != nil {
			log.Printf("cost-prediction: falling back to sample data: %v", err)
		}
		rows = analytics.SampleUsage(q, model)
		sampled = true
	}

	result := projection.Calculate(rows, params)

	writeJSON(w, http.StatusOK, map[string]any{
		"daily_costs":   result.Daily,
		"grouped_costs": result.Grouped,
		"categories":    result.Categories,
		"summary":       result.Summary,
		"parameters":    params,
		"sample_data":   sampled,
		// Clients overlap submissions with no cancellation; this timestamp
		// lets them discard responses that arrive out of order.
		"generated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// HandleMetrics implements GET /api/metrics. Unlike usage, totals fail loudly.
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "api.metrics")
	defer span.End()
	span.SetAttributes(attribute.String("org_id", orgID))

	totals, err := h.usage.FetchTotals(ctx, usageQueryFromParams(r))
	if err != nil {
		log.Printf("metrics: %v", err)
		writeError(w, http.StatusBadGateway, "analytics backend unavailable")
		return
	}

	writeJSON(w, http.StatusOK, totals)
}

// HandleMessageSearch implements POST /api/messages/search: embed the text,
// then run a vector similarity search over the messages index.
func (h *Handler) HandleMessageSearch(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.requireOrg(w, r)
	if !ok {
		return
	}
	if !h.allowLLMCall(w, r, orgID) {
		return
	}

	var body struct {
		Text  string `json:"text"`
		Limit int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "api.message_search")
	defer span.End()
	span.SetAttributes(attribute.String("org_id", orgID))

	vec, err := h.embedder.Embed(ctx, body.Text)
	if err != nil {
		log.Printf("messages/search: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to generate embedding")
		return
	}

	msgs, err := h.usage.SearchMessages(ctx, vec, body.Limit)
	if err != nil {
		log.Printf("messages/search: %v", err)
		writeError(w, http.StatusBadGateway, "analytics backend unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *Handler) requireOrg(w http.ResponseWriter, r *http.Request) (string, bool) {
	orgID := auth.GetOrgID(r.Context())
	if orgID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return orgID, true
}

func (h *Handler) allowLLMCall(w http.ResponseWriter, r *http.Request, orgID string) bool {
	allowed, err := h.limiter.Allow(r.Context(), orgID)
	if err != nil || !allowed {
		w.Header().Set("Retry-After", "60s")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error":       "rate limit exceeded",
			"retry_after": "60s",
		})
		return false
	}
	return true
}

// usageQueryFromParams builds a backend query from URL parameters, defaulting
// to the last 30 days.
func usageQueryFromParams(r *http.Request) analytics.UsageQuery {
	now := time.Now()
	params := r.URL.Query()

	q := analytics.UsageQuery{
		StartDate: params.Get("start_date"),
		EndDate:   params.Get("end_date"),
		GroupBy:   params.Get("group_by"),
		Filters:   map[string][]string{},
	}
	if q.StartDate == "" {
		q.StartDate = now.AddDate(0, 0, -30).Format("2006-01-02")
	}
	if q.EndDate == "" {
		q.EndDate = now.Format("2006-01-02")
	}
	for _, dim := range filterDimensions {
		if v := params.Get(dim); v != "" {
			q.Filters[dim] = strings.Split(v, ",")
		}
	}
	return q
}

func usageQueryFromParameters(p extract.CostParameters) analytics.UsageQuery {
	q := analytics.UsageQuery{
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		GroupBy:   p.GroupBy,
		Filters:   map[string][]string{},
	}
	addFilter := func(dim string, v *string) {
		if v != nil && *v != "" {
			q.Filters[dim] = []string{*v}
		}
	}
	addFilter("model", p.Model)
	addFilter("organization", p.Organization)
	addFilter("project", p.Project)
	addFilter("environment", p.Environment)
	addFilter("provider", p.Provider)
	addFilter("user", p.User)
	return q
}

// normalizeWindow fills missing dates from the timeframe so a prediction
// request built by hand behaves like one built by the extractor.
func normalizeWindow(p *extract.CostParameters) {
	if p.Timeframe == "" {
		p.Timeframe = "last month"
	}
	if p.StartDate == "" || p.EndDate == "" {
		r := timeparse.Parse(p.Timeframe, time.Now())
		if p.StartDate == "" {
			p.StartDate = r.Start[:10]
		}
		if p.EndDate == "" {
			p.EndDate = r.End[:10]
		}
	}
	if p.EndDate < p.StartDate {
		p.StartDate, p.EndDate = p.EndDate, p.StartDate
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
