package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestOpenAIProvider_ExtractEntities_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "chills for two days") {
			t.Errorf("Expected patient text in user message, got %+v", req.Messages)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
			t.Errorf("Expected JSON response format, got %+v", req.ResponseFormat)
		}

		resp := openai.ChatCompletionResponse{
			ID:      "chatcmpl-123",
			Object:  "chat.completion",
			Created: 1677652288,
			Model:   "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{
					Index: 0,
					Message: openai.ChatCompletionMessage{
						Role:    "assistant",
						Content: `{"DURATION": "for two days"}`,
					},
					FinishReason: "stop",
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
		Timeout: 5,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	got, err := provider.ExtractEntities(context.Background(), "chills for two days")
	if err != nil {
		t.Fatalf("ExtractEntities failed: %v", err)
	}
	if got["DURATION"] != "for two days" {
		t.Errorf("Unexpected entities: %v", got)
	}
}

func TestOpenAIProvider_ExtractEntities_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "Internal Server Error", "type": "server_error"}}`))
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if _, err := provider.ExtractEntities(context.Background(), "cough"); err == nil {
		t.Fatal("Expected error, got nil")
	}
}

func TestOpenAIProvider_ExtractEntities_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{ID: "empty"})
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if _, err := provider.ExtractEntities(context.Background(), "cough"); err == nil {
		t.Fatal("Expected error for empty choices")
	}
}

func TestOpenAIProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(openai.ModelsList{Models: []openai.Model{{ID: "gpt-4o-mini"}}})
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected provider to be available")
	}

	server.Close()
	if provider.IsAvailable(context.Background()) {
		t.Error("Expected provider to be unavailable after server shutdown")
	}
}

func TestNewOpenAIProvider_MissingKey(t *testing.T) {
	if _, err := NewOpenAIProvider(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}
