package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy:3128", "http://secure-proxy:3128", "internal.example, .corp.local")

	tests := []struct {
		url  string
		want string
	}{
		{"http://api.openai.com/v1", "http://proxy:3128"},
		{"https://api.openai.com/v1", "http://secure-proxy:3128"},
		{"http://internal.example/api", ""},
		{"http://ollama.corp.local:11434/api/tags", ""},
		{"http://corp.local/", ""},
		{"http://127.0.0.1:11434/api/tags", ""},
		{"http://localhost:11434/api/tags", ""},
	}

	for _, tt := range tests {
		req, _ := http.NewRequest(http.MethodGet, tt.url, nil)
		got, err := proxy(req)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.url, err)
		}
		gotStr := ""
		if got != nil {
			gotStr = got.String()
		}
		if gotStr != tt.want {
			t.Errorf("%s: expected proxy %q, got %q", tt.url, tt.want, gotStr)
		}
	}
}
