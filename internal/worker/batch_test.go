package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/symptra/internal/model"
)

// mockDiagnoser implements Diagnoser
type mockDiagnoser struct {
	failOn string
	delay  time.Duration
}

func (m *mockDiagnoser) Diagnose(ctx context.Context, text string) (*model.Response, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.failOn != "" && strings.Contains(text, m.failOn) {
		return nil, errors.New("diagnose error")
	}
	return &model.Response{InputText: text}, nil
}

func TestBatchProcessor_PreservesOrder(t *testing.T) {
	processor := NewBatchProcessor(&mockDiagnoser{delay: time.Millisecond}, 4)

	texts := make([]string, 25)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
	}

	results := processor.Process(context.Background(), texts)

	if len(results) != len(texts) {
		t.Fatalf("expected %d results, got %d", len(texts), len(results))
	}
	for i, res := range results {
		if res.Index != i {
			t.Errorf("expected index %d, got %d", i, res.Index)
		}
		if res.Error != nil {
			t.Errorf("unexpected error at %d: %v", i, res.Error)
			continue
		}
		if res.Response.InputText != texts[i] {
			t.Errorf("result %d belongs to %q", i, res.Response.InputText)
		}
	}
}

func TestBatchProcessor_Errors(t *testing.T) {
	processor := NewBatchProcessor(&mockDiagnoser{failOn: "bad"}, 2)

	results := processor.Process(context.Background(), []string{"good itching", "bad input"})

	if results[0].GetError() != nil {
		t.Errorf("expected success for first text, got %v", results[0].GetError())
	}
	if results[1].GetError() == nil {
		t.Error("expected error for second text")
	}
	if results[1].Response != nil {
		t.Error("expected nil response on error")
	}
}

func TestBatchProcessor_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockDiagnoser{}, 2)

	if results := processor.Process(context.Background(), nil); len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_Cancelled(t *testing.T) {
	processor := NewBatchProcessor(&mockDiagnoser{}, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := processor.Process(ctx, []string{"a", "b", "c"})

	if len(results) != 3 {
		t.Fatalf("expected a result slot per text, got %d", len(results))
	}
	for i, res := range results {
		if res == nil || res.Text != []string{"a", "b", "c"}[i] {
			t.Errorf("unexpected result at %d: %+v", i, res)
		}
	}
}

func TestReadTexts(t *testing.T) {
	content := "itching and skin rash\n# comment\n\n   \n  headache since monday  \nitching and skin rash\n"

	texts, err := ReadTexts(strings.NewReader(content))
	if err != nil {
		t.Fatalf("ReadTexts failed: %v", err)
	}

	expected := []string{"itching and skin rash", "headache since monday", "itching and skin rash"}
	if len(texts) != len(expected) {
		t.Fatalf("expected %d texts, got %d", len(expected), len(texts))
	}
	for i := range texts {
		if texts[i] != expected[i] {
			t.Errorf("expected %q at %d, got %q", expected[i], i, texts[i])
		}
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texts.txt")
	if err := os.WriteFile(path, []byte("cough\n# skip\nvomiting\n"), 0644); err != nil {
		t.Fatal(err)
	}

	processor := NewBatchProcessor(&mockDiagnoser{}, 2)
	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&mockDiagnoser{}, 2)

	if _, err := processor.ProcessFile(context.Background(), "no_such_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}
