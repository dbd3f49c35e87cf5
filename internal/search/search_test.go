package search

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/vnmchuo/llm-cost-dashboard/internal/llm"
)

type mockLLM struct {
	response  string
	err       error
	gotSystem string
}

func (m *mockLLM) CompleteJSON(ctx context.Context, system, user string, schema llm.Schema) (json.RawMessage, error) {
	m.gotSystem = system
	if m.err != nil {
		return nil, m.err
	}
	return json.RawMessage(m.response), nil
}

func (m *mockLLM) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, errors.New("not implemented")
}

var testDims = Dimensions{
	Models:       []string{"gpt-4", "claude-3-opus"},
	Providers:    []string{"openai", "anthropic"},
	Environments: []string{"production", "staging"},
}

func TestSearch_ValidValuesPass(t *testing.T) {
	m := &mockLLM{response: `{"model": "gpt-4", "provider": "openai", "environment": null, "date_range": "30d"}`}
	s := New(m, testDims)

	f, err := s.Search(context.Background(), "gpt-4 spend on openai last 30 days")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if f.Model == nil || *f.Model != "gpt-4" {
		t.Errorf("expected model gpt-4, got %v", f.Model)
	}
	if f.Provider == nil || *f.Provider != "openai" {
		t.Errorf("expected provider openai, got %v", f.Provider)
	}
	if f.Environment != nil {
		t.Errorf("expected nil environment, got %v", *f.Environment)
	}
	if f.DateRange == nil || *f.DateRange != "30d" {
		t.Errorf("expected date_range 30d, got %v", f.DateRange)
	}
}

func TestSearch_UnknownValuesDropped(t *testing.T) {
	m := &mockLLM{response: `{"model": "made-up-model", "provider": "openai"}`}
	s := New(m, testDims)

	f, err := s.Search(context.Background(), "made-up-model spend")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if f.Model != nil {
		t.Errorf("expected invented model to be dropped, got %v", *f.Model)
	}
	if f.Provider == nil {
		t.Errorf("expected valid provider to survive")
	}
}

func TestSearch_CaseInsensitiveMatchCanonicalizes(t *testing.T) {
	m := &mockLLM{response: `{"model": "GPT-4"}`}
	s := New(m, testDims)

	f, err := s.Search(context.Background(), "GPT-4")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if f.Model == nil || *f.Model != "gpt-4" {
		t.Errorf("expected canonical enum value gpt-4, got %v", f.Model)
	}
}

func TestSearch_PromptListsEnums(t *testing.T) {
	m := &mockLLM{response: `{}`}
	s := New(m, testDims)

	_, _ = s.Search(context.Background(), "anything")
	if !strings.Contains(m.gotSystem, "claude-3-opus") || !strings.Contains(m.gotSystem, "anthropic") {
		t.Errorf("system prompt should enumerate dimension values")
	}
}

func TestSearch_UpstreamFailure(t *testing.T) {
	m := &mockLLM{err: errors.New("timeout")}
	s := New(m, testDims)

	if _, err := s.Search(context.Background(), "anything"); err == nil {
		t.Errorf("expected error on upstream failure")
	}
}
