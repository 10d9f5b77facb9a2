// Package llm recognizes entity mentions in symptom text through a chat
// model. It is optional: without a configured provider the rule-based
// recognizer is used instead.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/symptra/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// ExtractEntities returns label -> mention for the entities found in text
	ExtractEntities(ctx context.Context, text string) (map[string]string, error)

	// IsAvailable checks if the provider is configured and reachable
	IsAvailable(ctx context.Context) bool
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI-compatible endpoints
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, Azure, local gateways)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(c model.LLMConfig) Config {
	return Config{
		Provider:   c.Provider,
		Model:      c.Model,
		APIKey:     c.APIKey,
		BaseURL:    c.BaseURL,
		Timeout:    c.Timeout,
		MaxTokens:  c.MaxTokens,
		HTTPProxy:  c.HTTPProxy,
		HTTPSProxy: c.HTTPSProxy,
		NoProxy:    c.NoProxy,
	}
}

const systemPrompt = "You label entity mentions in short patient-written texts. " +
	"Reply with a single JSON object and nothing else."

// BuildPrompt constructs the entity extraction prompt for text
func BuildPrompt(text string) string {
	return fmt.Sprintf(`Find temporal and numeric mentions in the patient text below.

Use only these labels as keys: DATE, TIME, DURATION, AGE, QUANTITY, CARDINAL, PERSON.
Each value must be the exact mention as written in the text. If a label occurs
more than once, use the last mention. Omit labels that do not occur.
Do not include symptoms, diagnoses or advice.

Patient text:
"""
%s
"""`, text)
}

// ParseEntities decodes a model reply into a label -> mention map. Code
// fences and text around the JSON object are ignored; labels are upper-cased
// and empty values dropped.
func ParseEntities(reply string) (map[string]string, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}

	entities := make(map[string]string, len(raw))
	for label, v := range raw {
		var value string
		switch t := v.(type) {
		case string:
			value = t
		case []any:
			// a list means several mentions; keep the last one
			if len(t) > 0 {
				value, _ = t[len(t)-1].(string)
			}
		case float64:
			value = strconv.FormatFloat(t, 'f', -1, 64)
		}
		label = strings.ToUpper(strings.TrimSpace(label))
		value = strings.TrimSpace(value)
		if label == "" || value == "" {
			continue
		}
		entities[label] = value
	}
	return entities, nil
}
