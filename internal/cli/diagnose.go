package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/symptra/internal/extract"
	"github.com/ppiankov/symptra/internal/pipeline"
)

var (
	inputFile   string
	inputHTML   bool
	jsonOutput  bool
	outJSON     string
	engine      string
	diagTimeout time.Duration
)

// diagnoseCmd represents the diagnose command
var diagnoseCmd = &cobra.Command{
	Use:   "diagnose [text...]",
	Short: "Diagnose one symptom description",
	Long: `Diagnose extracts symptoms from free text and prints:
- The recognized symptoms and entities (dates, durations, ages)
- The three most likely diseases with probabilities
- A severity based risk score from 0 to 10
- A description and precautions for the top prediction

The text is taken from the arguments, or from --file ("-" reads stdin).

Example:
  symptra diagnose "I have a skin rash and itching since yesterday"
  symptra diagnose --file notes.txt --json
  symptra diagnose --file page.html --html --out result.json`,
	RunE: runDiagnose,
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)

	diagnoseCmd.Flags().StringVarP(&inputFile, "file", "f", "", "read the text from a file (\"-\" for stdin)")
	diagnoseCmd.Flags().BoolVar(&inputHTML, "html", false, "treat the input as HTML and diagnose its visible text")
	diagnoseCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the response as JSON instead of a summary")
	diagnoseCmd.Flags().StringVar(&outJSON, "out", "", "also write the JSON response to this path")
	diagnoseCmd.Flags().StringVar(&engine, "engine", "", "extraction engine (rules, llm, none)")
	diagnoseCmd.Flags().DurationVar(&diagTimeout, "timeout", 2*time.Minute, "overall timeout, including training on first run")
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if inputHTML {
		if text, err = extract.VisibleText(text); err != nil {
			return fmt.Errorf("parse html: %w", err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if engine != "" {
		cfg.Extract.Engine = engine
	}

	ctx, cancel := context.WithTimeout(context.Background(), diagTimeout)
	defer cancel()

	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		if pipeline.IsTrainingDataMissing(err) {
			return fmt.Errorf("%w\nPlace the reference CSV files in %s or pass --data-dir", err, cfg.Data.Dir)
		}
		return err
	}

	resp, err := p.Diagnose(ctx, text)
	if err != nil {
		return fmt.Errorf("diagnose: %w", err)
	}

	renderer := p.Renderer()
	if outJSON != "" {
		if err := renderer.RenderJSONFile(resp, outJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", outJSON)
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return renderer.RenderJSON(out, resp)
	}
	renderer.RenderSummary(out, resp)
	return nil
}

// readInput returns the text to diagnose from args or --file
func readInput(stdin io.Reader, args []string) (string, error) {
	if inputFile == "" {
		if len(args) == 0 {
			return "", fmt.Errorf("no text given: pass it as arguments or with --file")
		}
		return strings.Join(args, " "), nil
	}
	if len(args) > 0 {
		return "", fmt.Errorf("pass the text either as arguments or with --file, not both")
	}

	var data []byte
	var err error
	if inputFile == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(inputFile)
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}
