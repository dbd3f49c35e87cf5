package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// UsageRow is one raw per-day usage record from the analytics backend.
// Category is set only when the query grouped by a dimension.
type UsageRow struct {
	Date                  string  `json:"date"`
	TotalPromptTokens     float64 `json:"total_prompt_tokens"`
	TotalCompletionTokens float64 `json:"total_completion_tokens"`
	TotalCost             float64 `json:"total_cost"`
	Category              string  `json:"category,omitempty"`
}

// Totals is the counter-endpoint aggregate for a date window.
type Totals struct {
	TotalRequests int64   `json:"total_requests"`
	TotalTokens   int64   `json:"total_tokens"`
	TotalCost     float64 `json:"total_cost"`
}

// Message is one vector-search hit from the messages index.
type Message struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Model      string  `json:"model"`
	Similarity float64 `json:"similarity"`
}

// UsageQuery carries the filter set for a usage read. Multi-value filters
// are comma-joined into a single query parameter, which is what the backend
// expects.
type UsageQuery struct {
	StartDate string
	EndDate   string
	GroupBy   string              // backend column_name parameter
	Filters   map[string][]string // dimension -> values
}

// Client reads the external analytics API. It owns no data; failures are
// returned to the caller, which decides whether to substitute sample data.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: http.DefaultClient,
	}
}

type dataEnvelope[T any] struct {
	Data []T `json:"data"`
}

func (c *Client) FetchUsage(ctx context.Context, q UsageQuery) ([]UsageRow, error) {
	var env dataEnvelope[UsageRow]
	if err := c.get(ctx, "/v0/pipes/llm_usage.json", q.values(), &env); err != nil {
		return nil, fmt.Errorf("usage fetch failed: %w", err)
	}
	return env.Data, nil
}

func (c *Client) FetchTotals(ctx context.Context, q UsageQuery) (*Totals, error) {
	var env dataEnvelope[Totals]
	if err := c.get(ctx, "/v0/pipes/llm_usage_counter.json", q.values(), &env); err != nil {
		return nil, fmt.Errorf("totals fetch failed: %w", err)
	}
	if len(env.Data) == 0 {
		return &Totals{}, nil
	}
	return &env.Data[0], nil
}

// SearchMessages runs a vector similarity search over the messages index.
func (c *Client) SearchMessages(ctx context.Context, embedding []float64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	body, err := json.Marshal(map[string]any{
		"embedding": embedding,
		"limit":     limit,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v0/pipes/llm_messages_search.json", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("message search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("message search failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var env dataEnvelope[Message]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("message search failed: %w", err)
	}
	return env.Data, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("analytics api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (q UsageQuery) values() url.Values {
	params := url.Values{}
	if q.StartDate != "" {
		params.Set("start_date", q.StartDate)
	}
	if q.EndDate != "" {
		params.Set("end_date", q.EndDate)
	}
	if q.GroupBy != "" {
		params.Set("column_name", q.GroupBy)
	}
	for dim, vals := range q.Filters {
		if len(vals) > 0 {
			params.Set(dim, strings.Join(vals, ","))
		}
	}
	return params
}
