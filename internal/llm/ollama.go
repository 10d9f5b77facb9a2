package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/symptra/internal/log"
	"github.com/ppiankov/symptra/internal/util"
)

// OllamaProvider implements Provider for a local Ollama server
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	// local models can be slow to answer
	timeout := config.timeout(60 * time.Second)

	return &OllamaProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: util.NewHTTPClient(timeout, config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		config:     config,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks that the server answers the tags endpoint
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		log.Warnw("Ollama availability check failed", "stage", "request", "error", err)
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Warnw("Ollama availability check failed", "url", p.baseURL, "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		log.Warnw("Ollama availability check failed", "url", p.baseURL, "status", resp.StatusCode)
		return false
	}
	return true
}

// ExtractEntities asks the local model for a JSON object of entity mentions
func (p *OllamaProvider) ExtractEntities(ctx context.Context, text string) (map[string]string, error) {
	maxTokens := p.config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 300
	}

	resp, err := p.generate(ctx, ollamaRequest{
		Model:  p.config.Model,
		Prompt: BuildPrompt(text),
		Stream: false,
		System: systemPrompt,
		Format: "json",
		Options: ollamaOptions{
			Temperature: 0,
			NumPredict:  maxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ollama API error: %w", err)
	}

	return ParseEntities(resp.Response)
}

func (p *OllamaProvider) generate(ctx context.Context, apiReq ollamaRequest) (*ollamaResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}
