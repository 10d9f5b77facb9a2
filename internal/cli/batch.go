package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/symptra/internal/pipeline"
	"github.com/ppiankov/symptra/internal/worker"
)

var (
	concurrency  int
	batchOut     string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Diagnose many symptom descriptions from a file in parallel",
	Long: `Batch diagnoses one description per line:
- Blank lines and lines starting with # are skipped
- Lines are processed in parallel with a configurable worker count
- Results are written as JSON lines in input order

Example:
  symptra batch notes.txt
  symptra batch notes.txt --concurrency 8 --out results.jsonl
  cat notes.txt | symptra batch -`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "write JSON lines to this path (default: stdout)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&engine, "engine", "", "extraction engine (rules, llm, none)")
}

func runBatch(cmd *cobra.Command, args []string) (err error) {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if engine != "" {
		cfg.Extract.Engine = engine
	}
	cfg.Concurrency.Workers = concurrency

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Symptra Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		return err
	}

	texts, err := worker.ReadTextsFromFile(file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d descriptions\n", len(texts))
	fmt.Fprintf(os.Stderr, "⚙️  Processing with %d workers...\n\n", concurrency)

	results := worker.NewBatchProcessor(p, concurrency).Process(ctx, texts)

	out := cmd.OutOrStdout()
	if batchOut != "" {
		f, createErr := os.Create(batchOut)
		if createErr != nil {
			return fmt.Errorf("create output: %w", createErr)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close output: %w", closeErr)
			}
		}()
		out = f
	}

	renderer := p.Renderer()
	successCount, failureCount := 0, 0
	for _, result := range results {
		line := pipeline.JSONLine{Index: result.Index, Text: result.Text, Response: result.Response}
		if result.Error != nil {
			failureCount++
			line.Error = result.Error.Error()
			fmt.Fprintf(os.Stderr, "✗ line %d: %v\n", result.Index+1, result.Error)
		} else {
			successCount++
		}
		if err := renderer.RenderJSONLine(out, line); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}
