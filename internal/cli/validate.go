package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/symptra/internal/validate"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the reference tables for gaps",
	Long: `Validate cross-checks the dataset, severity, description and precaution
tables and reports:
- Missing or unreadable files (errors)
- Training symptoms without a severity weight, which never become features
- Diseases without a description or precautions
- Diseases with a single training example
- Knowledge rows for diseases that are never predicted

Exits with an error when any error-level issue is found.

Example:
  symptra validate --data-dir ./data
  symptra validate --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		report, err := validate.NewValidator(cfg.Data).Validate(context.Background())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "Reference data in %s\n", cfg.Data.Dir)
			fmt.Fprintf(out, "  Examples:  %d\n", report.Examples)
			fmt.Fprintf(out, "  Diseases:  %d\n", report.Diseases)
			fmt.Fprintf(out, "  Features:  %d\n\n", report.Features)
			for _, issue := range report.Issues {
				fmt.Fprintf(out, "%s %-20s %s", issueIcon(issue.Severity), issue.Kind, issue.Subject)
				if issue.Detail != "" {
					fmt.Fprintf(out, " (%s)", issue.Detail)
				}
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "\n%d errors, %d warnings, %d notes\n",
				report.Count(validate.SeverityError),
				report.Count(validate.SeverityWarning),
				report.Count(validate.SeverityInfo))
		}

		if report.HasErrors() {
			return fmt.Errorf("reference data has %d errors", report.Count(validate.SeverityError))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
}

func issueIcon(s validate.Severity) string {
	switch s {
	case validate.SeverityError:
		return "✗"
	case validate.SeverityWarning:
		return "⚠️ "
	default:
		return "ℹ️ "
	}
}
