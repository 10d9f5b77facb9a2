package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/symptra/internal/model"
)

// Diagnoser produces a response for one text
type Diagnoser interface {
	Diagnose(ctx context.Context, text string) (*model.Response, error)
}

// DiagnoseJob diagnoses one input line
type DiagnoseJob struct {
	Index     int
	Text      string
	Diagnoser Diagnoser
}

// Execute runs the diagnosis
func (j *DiagnoseJob) Execute(ctx context.Context) Result {
	resp, err := j.Diagnoser.Diagnose(ctx, j.Text)
	return &DiagnoseResult{
		Index:    j.Index,
		Text:     j.Text,
		Response: resp,
		Error:    err,
	}
}

// DiagnoseResult is the outcome of one DiagnoseJob
type DiagnoseResult struct {
	Index    int
	Text     string
	Response *model.Response
	Error    error
}

// GetError returns the diagnosis error
func (r *DiagnoseResult) GetError() error {
	return r.Error
}

// BatchProcessor diagnoses many texts concurrently
type BatchProcessor struct {
	diagnoser   Diagnoser
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(diagnoser Diagnoser, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		diagnoser:   diagnoser,
		concurrency: concurrency,
	}
}

// Process diagnoses texts and returns results in input order. Texts not
// reached before ctx is cancelled are reported with the context error.
func (b *BatchProcessor) Process(ctx context.Context, texts []string) []*DiagnoseResult {
	if len(texts) == 0 {
		return []*DiagnoseResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, text := range texts {
		if !pool.Submit(&DiagnoseJob{Index: i, Text: text, Diagnoser: b.diagnoser}) {
			break
		}
	}

	results := pool.Wait()

	out := make([]*DiagnoseResult, len(texts))
	for _, r := range results {
		dr := r.(*DiagnoseResult)
		out[dr.Index] = dr
	}
	for i := range out {
		if out[i] == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &DiagnoseResult{Index: i, Text: texts[i], Error: err}
		}
	}

	return out
}

// ProcessFile reads texts from a file and diagnoses them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*DiagnoseResult, error) {
	texts, err := ReadTextsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read texts: %w", err)
	}

	return b.Process(ctx, texts), nil
}

// ReadTextsFromFile reads one text per line ("-" reads stdin)
func ReadTextsFromFile(filePath string) ([]string, error) {
	if filePath == "-" {
		return ReadTexts(os.Stdin)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadTexts(file)
}

// ReadTexts reads one text per line, skipping blank lines and # comments
func ReadTexts(r io.Reader) ([]string, error) {
	var texts []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		texts = append(texts, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}

	return texts, nil
}
