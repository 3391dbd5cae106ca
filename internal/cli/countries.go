package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/libertas/internal/pipeline"
)

// countriesCmd represents the countries command
var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List the shared country universe and feature exclusions",
	Long: `Countries loads both tables and prints:
- Every country code present in both tables for the reporting year
- The shared countries left out of clustering, with the column that excluded them

Example:
  libertas countries
  libertas countries --freedom data/hfi.xlsx --year 2018`,
	Args: cobra.NoArgs,
	RunE: runCountries,
}

func init() {
	rootCmd.AddCommand(countriesCmd)

	addDataFlags(countriesCmd)
	countriesCmd.Flags().Int("year", 0, "reporting year of the freedom table (default from config: 2017)")
}

func runCountries(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	p, err := pipeline.NewPipeline(cfg, nil, newLogger())
	if err != nil {
		return err
	}

	prep, err := p.Prepare(context.Background())
	if err != nil {
		return err
	}

	codes := make([]string, len(prep.Shared))
	for i, c := range prep.Shared {
		codes[i] = string(c)
	}
	fmt.Printf("Shared countries (%d):\n", len(codes))
	for i := 0; i < len(codes); i += 15 {
		end := min(i+15, len(codes))
		fmt.Printf("  %s\n", strings.Join(codes[i:end], " "))
	}

	fmt.Printf("\nFeature-complete: %d\n", len(prep.Features))
	if len(prep.Excluded) == 0 {
		return nil
	}

	fmt.Printf("\nExcluded (%d):\n", len(prep.Excluded))
	for _, ex := range prep.Excluded {
		value := ex.Value
		if value == "" {
			value = "blank"
		}
		fmt.Printf("  %s  %s = %s\n", ex.Country, ex.Column, value)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "\nRows read: %d freedom, %d stringency\n", len(prep.Tables.Freedom), len(prep.Tables.Stringency))
	}
	return nil
}
