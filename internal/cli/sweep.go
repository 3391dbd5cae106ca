package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/libertas/internal/pipeline"
	"github.com/ppiankov/libertas/internal/telemetry"
	"github.com/ppiankov/libertas/internal/worker"
)

var (
	sweepFrom int
	sweepTo   int
	sweepJSON string
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Cluster the feature set for a range of k and print the elbow table",
	Long: `Sweep runs k-means once per k in [--from, --to] on the same feature set:
- Clusterings run in parallel with the configured worker count
- Each k uses the same restarts and seed as 'libertas run'
- Inertia and iterations are printed per k to help choose the cluster count

No averages, trend or plot are computed.

Example:
  libertas sweep
  libertas sweep --from 2 --to 10 --json results/sweep.json`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	addDataFlags(sweepCmd)
	addClusteringFlags(sweepCmd)
	sweepCmd.Flags().Int("year", 0, "reporting year of the freedom table (default from config: 2017)")

	sweepCmd.Flags().IntVar(&sweepFrom, "from", 2, "smallest k")
	sweepCmd.Flags().IntVar(&sweepTo, "to", 8, "largest k")
	sweepCmd.Flags().StringVar(&sweepJSON, "json", "", "output JSON path (optional)")
	sweepCmd.Flags().DurationVar(&runTimeout, "timeout", 5*time.Minute, "overall sweep timeout")
}

func runSweep(cmd *cobra.Command, args []string) error {
	if sweepFrom < 1 || sweepTo < sweepFrom {
		return fmt.Errorf("invalid range: --from %d --to %d", sweepFrom, sweepTo)
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	logger := newLogger()
	tel, err := telemetry.New(false, nil, logger)
	if err != nil {
		return err
	}
	p, err := pipeline.NewPipeline(cfg, tel, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "⚙️  Sweeping k=%d..%d with %d workers...\n\n", sweepFrom, sweepTo, cfg.Clustering.Workers)

	results, err := p.Sweep(ctx, sweepFrom, sweepTo)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	printSweep(results)

	if sweepJSON != "" {
		if err := writeSweepJSON(results, sweepJSON); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "\n✓ JSON: %s\n", sweepJSON)
	}

	return nil
}

func printSweep(results []*worker.SweepResult) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "k\tinertia\titerations\tconverged\t")
	for _, r := range results {
		if r.Error != nil {
			fmt.Fprintf(tw, "%d\t-\t-\t-\t%v\n", r.K, r.Error)
			continue
		}
		fmt.Fprintf(tw, "%d\t%.4f\t%d\t%t\t\n", r.K, r.Inertia, r.Iterations, r.Converged)
	}
	_ = tw.Flush()
}

func writeSweepJSON(results []*worker.SweepResult, path string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sweep: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
