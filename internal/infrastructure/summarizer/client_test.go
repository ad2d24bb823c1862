package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/99minutos/user-directory/internal/core/ports"
)

func TestClient_Summarize(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  a summary \n"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	out, err := c.Summarize(context.Background(), ports.SummaryRequest{
		Prompt: "Write a report", Text: "keywords", Temperature: 0.3, MaxTokens: 100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "a summary" {
		t.Fatalf("expected trimmed content, got %q", out)
	}
	if got.Model != defaultModel || got.MaxTokens != 100 || got.Temperature != 0.3 {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(got.Messages) != 2 || !strings.Contains(got.Messages[1].Content, "keywords") {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestClient_ModelOverride(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "base"})
	if _, err := c.Summarize(context.Background(), ports.SummaryRequest{Model: "override"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Model != "override" {
		t.Fatalf("expected override model, got %q", got.Model)
	}
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Summarize(context.Background(), ports.SummaryRequest{})
	if err == nil || !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestClient_NonJSONStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Summarize(context.Background(), ports.SummaryRequest{})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestClient_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Summarize(context.Background(), ports.SummaryRequest{})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	if _, err := c.Summarize(context.Background(), ports.SummaryRequest{}); err == nil {
		t.Fatalf("expected timeout error")
	}
}
