package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/symptra/internal/model"
)

// Renderer writes responses as JSON, JSON Lines or a terminal summary
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderJSON writes one indented JSON document
func (r *Renderer) RenderJSON(w io.Writer, resp *model.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// RenderJSONFile writes the response to path, creating parent directories
func (r *Renderer) RenderJSONFile(resp *model.Response, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := r.RenderJSON(f, resp); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// JSONLine is one record of batch output
type JSONLine struct {
	Index    int             `json:"index"`
	Text     string          `json:"text"`
	Response *model.Response `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// RenderJSONLine writes a compact single-line record
func (r *Renderer) RenderJSONLine(w io.Writer, line JSONLine) error {
	return json.NewEncoder(w).Encode(line)
}

// RenderSummary prints a human-readable diagnosis
func (r *Renderer) RenderSummary(w io.Writer, resp *model.Response) {
	fmt.Fprintf(w, "\n📋 Diagnosis %s\n", resp.RequestID)
	fmt.Fprintf(w, "─────────────────────────────────────\n")

	if len(resp.Extracted.Symptoms) == 0 {
		fmt.Fprintf(w, "Symptoms:    (none recognized)\n")
	} else {
		fmt.Fprintf(w, "Symptoms:    %s\n", strings.Join(resp.Extracted.Symptoms, ", "))
	}

	if len(resp.Extracted.Entities) > 0 {
		labels := make([]string, 0, len(resp.Extracted.Entities))
		for label := range resp.Extracted.Entities {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		parts := make([]string, len(labels))
		for i, label := range labels {
			parts[i] = fmt.Sprintf("%s=%q", label, resp.Extracted.Entities[label])
		}
		fmt.Fprintf(w, "Entities:    %s\n", strings.Join(parts, " "))
	}

	fmt.Fprintf(w, "Risk score:  %.2f / 10 (%s)\n", resp.RiskScore, RiskLevel(resp.RiskScore))

	if len(resp.Predictions) > 0 {
		fmt.Fprintf(w, "\nMost likely:\n")
		for i, p := range resp.Predictions {
			fmt.Fprintf(w, "  %d. %-40s %5.1f%%\n", i+1, p.Disease, p.Probability*100)
		}
	}

	fmt.Fprintf(w, "\n%s\n", resp.Details.Description)
	if len(resp.Details.Precautions) > 0 {
		fmt.Fprintf(w, "\nPrecautions:\n")
		for _, p := range resp.Details.Precautions {
			fmt.Fprintf(w, "  • %s\n", p)
		}
	}

	fmt.Fprintf(w, "\nThis is not medical advice. Consult a clinician for diagnosis.\n")
}

// RiskLevel buckets a score for display
func RiskLevel(score float64) string {
	switch {
	case score >= 7:
		return "high"
	case score >= 3:
		return "moderate"
	default:
		return "low"
	}
}
