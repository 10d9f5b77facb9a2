package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/symptra/internal/pipeline"
)

// lookupCmd represents the lookup command
var lookupCmd = &cobra.Command{
	Use:   "lookup <disease>",
	Short: "Show the description and precautions for a disease",
	Long: `Lookup prints the knowledge base entry for a disease name.
Names are matched case-insensitively.

Example:
  symptra lookup "Fungal infection"
  symptra lookup gerd --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		name := strings.Join(args, " ")
		lookup := pipeline.LoadKnowledge(cfg.Data)
		details := lookup.Details(name)

		out := cmd.OutOrStdout()
		if jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"disease":     name,
				"known":       lookup.Known(name),
				"description": details.Description,
				"precautions": details.Precautions,
			})
		}

		fmt.Fprintf(out, "%s\n\n%s\n", name, details.Description)
		if len(details.Precautions) > 0 {
			fmt.Fprintln(out, "\nPrecautions:")
			for _, p := range details.Precautions {
				fmt.Fprintf(out, "  • %s\n", p)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
}
