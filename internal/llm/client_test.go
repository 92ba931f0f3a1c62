package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gridlens/outage-insight/internal/testutil"
)

func TestCreateChatCompletionVCR(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "chat_completion")
	defer cleanup()

	client := NewClient("test-key", WithHTTPClient(testutil.VCRHTTPClient(r)))

	resp, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model: "gpt-4o",
		Messages: []ChatCompletionMessage{
			{Role: "system", Content: "You are a data analyst."},
			{Role: "user", Content: `{"stage":"correlations","metrics":{"labels":["48109"],"datasets":[]}}`},
		},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion() error = %v", err)
	}

	if len(resp.Choices) != 1 {
		t.Fatalf("choices = %d, want 1", len(resp.Choices))
	}
	if !strings.Contains(resp.Choices[0].Message.Content, "winter months") {
		t.Errorf("unexpected completion content: %q", resp.Choices[0].Message.Content)
	}
	if resp.Usage.TotalTokens != 92 {
		t.Errorf("total tokens = %d, want 92", resp.Usage.TotalTokens)
	}
}

func TestCreateChatCompletionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"invalid_api_key","message":"Incorrect API key provided"}}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))

	_, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("CreateChatCompletion() expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Code != "invalid_api_key" {
		t.Errorf("apiErr = %+v, want 401/invalid_api_key", apiErr)
	}
}

func TestCreateChatCompletionNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	client := NewClient("key", WithBaseURL(srv.URL))

	_, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("CreateChatCompletion() expected error")
	}
	if !strings.Contains(err.Error(), "status 502") {
		t.Errorf("error = %v, want status 502 mention", err)
	}
}

func TestCreateChatCompletionTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	client := NewClient("key", WithBaseURL(slow.URL), WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("CreateChatCompletion() expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("call took %v, timeout did not apply", elapsed)
	}
}

func TestCountTextTokens(t *testing.T) {
	n, err := CountTextTokens("gpt-4o", "power outages cluster in winter")
	if err != nil {
		t.Fatalf("CountTextTokens() error = %v", err)
	}
	if n <= 0 {
		t.Errorf("CountTextTokens() = %d, want > 0", n)
	}

	// Unknown models fall back to a default encoding instead of failing.
	n, err = CountTextTokens("some-future-model", "hello world")
	if err != nil {
		t.Fatalf("CountTextTokens() fallback error = %v", err)
	}
	if n <= 0 {
		t.Errorf("CountTextTokens() fallback = %d, want > 0", n)
	}
}
