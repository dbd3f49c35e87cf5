package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompleteJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Errorf("missing bearer token")
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
			t.Errorf("expected json_schema response format, got %+v", req.ResponseFormat)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]string{"role": "assistant", "content": `{"model":"gpt-4"}`}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAI("test-key", WithBaseURL(srv.URL))
	raw, err := c.CompleteJSON(context.Background(), "sys", "user", Schema{Name: "params"})
	if err != nil {
		t.Fatalf("CompleteJSON failed: %v", err)
	}

	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("invalid JSON returned: %v", err)
	}
	if out["model"] != "gpt-4" {
		t.Errorf("expected model gpt-4, got %v", out["model"])
	}
}

func TestCompleteJSON_NonJSONContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]string{"content": "not json"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAI("test-key", WithBaseURL(srv.URL))
	if _, err := c.CompleteJSON(context.Background(), "sys", "user", Schema{}); err == nil {
		t.Errorf("expected error for non-JSON content")
	}
}

func TestCompleteJSON_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOpenAI("test-key", WithBaseURL(srv.URL))
	_, err := c.CompleteJSON(context.Background(), "sys", "user", Schema{})
	if err == nil {
		t.Fatalf("expected error on 503")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []any{map[string]any{"embedding": []float64{0.1, 0.2, 0.3}}},
		})
	}))
	defer srv.Close()

	c := NewOpenAI("test-key", WithBaseURL(srv.URL))
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("unexpected embedding %v", vec)
	}
}

func TestEmbed_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	c := NewOpenAI("test-key", WithBaseURL(srv.URL))
	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Errorf("expected error for empty embedding data")
	}
}
