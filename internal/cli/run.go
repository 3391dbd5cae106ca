package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/libertas/internal/model"
	"github.com/ppiankov/libertas/internal/pipeline"
	"github.com/ppiankov/libertas/internal/telemetry"
	"github.com/ppiankov/libertas/internal/validate"
)

var (
	runTimeout  time.Duration
	noCache     bool
	noFooter    bool
	llmEnabled  bool
	llmProvider string
	llmModel    string
	elbowFrom   int
	elbowTo     int
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Cluster countries and relate each cluster to COVID response stringency",
	Long: `Run executes the full analysis:
- Load the freedom and stringency tables
- Intersect their country codes
- Extract the seven freedom-of-expression sub-indicators
- Cluster the countries with k-means
- Average freedom and stringency per cluster and season
- Fit stringency on the reference date against the freedom score
- Write the plot and reports

Example:
  libertas run
  libertas run --freedom data/hfi.csv --stringency data/stringency.csv -k 4
  libertas run --md results/report.md --xlsx results/report.xlsx
  libertas run --elbow-to 8
  libertas run --llm --llm-provider ollama --llm-model llama3.2`,
	Args: cobra.NoArgs,
	RunE: runAnalysis,
}

func init() {
	rootCmd.AddCommand(runCmd)

	addDataFlags(runCmd)
	addClusteringFlags(runCmd)

	// Analysis flags
	runCmd.Flags().Int("year", 0, "reporting year of the freedom table (default from config: 2017)")
	runCmd.Flags().String("reference-date", "", "stringency reference date, YYYY-MM-DD (default from config: 2020-12-31)")
	runCmd.Flags().Bool("strict-aggregates", false, "fail the run when a cluster has no data for an average")

	// Output flags
	runCmd.Flags().String("plot", "", "output PNG path (default from config: results/images/final.png)")
	runCmd.Flags().String("json", "", "output JSON path (default from config: results/report.json)")
	runCmd.Flags().String("md", "", "output Markdown path (optional)")
	runCmd.Flags().String("xlsx", "", "output Excel workbook path (optional)")
	runCmd.Flags().String("metrics-file", "", "write Prometheus textfile metrics to this path (optional)")
	runCmd.Flags().Bool("trace", false, "print per-stage trace spans to stderr")
	runCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	runCmd.Flags().DurationVar(&runTimeout, "timeout", 5*time.Minute, "overall run timeout")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the table and partition cache")
	runCmd.Flags().IntVar(&elbowFrom, "elbow-from", 2, "smallest k of the elbow table")
	runCmd.Flags().IntVar(&elbowTo, "elbow-to", 0, "print an elbow table up to this k before the run (0 disables)")

	// LLM flags
	runCmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable LLM summary generation")
	runCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, ollama)")
	runCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

// addDataFlags registers the source table flags
func addDataFlags(cmd *cobra.Command) {
	cmd.Flags().String("freedom", "", "freedom index table, .csv or .xlsx")
	cmd.Flags().String("stringency", "", "stringency index table, .csv or .xlsx")
}

// addClusteringFlags registers the k-means flags
func addClusteringFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("clusters", "k", 0, "number of clusters (default from config: 4)")
	cmd.Flags().Int("restarts", 0, "k-means restarts, at least 10 (default from config: 15)")
	cmd.Flags().Int("max-iter", 0, "iteration cap per restart (default from config: 300)")
	cmd.Flags().Uint64("seed", 0, "random seed for k-means initialization")
	cmd.Flags().Int("workers", 0, "concurrent k-means restarts (default: number of CPUs)")
}

// applyFlags copies every flag the user set onto cfg. Unset flags keep
// the value from the config file, the environment or the defaults.
func applyFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("freedom") {
		cfg.Data.FreedomPath, _ = flags.GetString("freedom")
	}
	if changed("stringency") {
		cfg.Data.StringencyPath, _ = flags.GetString("stringency")
	}
	if changed("clusters") {
		cfg.Clustering.K, _ = flags.GetInt("clusters")
	}
	if changed("restarts") {
		cfg.Clustering.Restarts, _ = flags.GetInt("restarts")
	}
	if changed("max-iter") {
		cfg.Clustering.MaxIterations, _ = flags.GetInt("max-iter")
	}
	if changed("seed") {
		cfg.Clustering.Seed, _ = flags.GetUint64("seed")
	}
	if changed("workers") {
		cfg.Clustering.Workers, _ = flags.GetInt("workers")
	}
	if changed("year") {
		cfg.Analysis.ReportingYear, _ = flags.GetInt("year")
	}
	if changed("reference-date") {
		cfg.Analysis.ReferenceDate, _ = flags.GetString("reference-date")
	}
	if changed("strict-aggregates") {
		cfg.Aggregation.Strict, _ = flags.GetBool("strict-aggregates")
	}
	if changed("plot") {
		cfg.Output.PlotPath, _ = flags.GetString("plot")
	}
	if changed("json") {
		cfg.Output.JSONPath, _ = flags.GetString("json")
	}
	if changed("md") {
		cfg.Output.MDPath, _ = flags.GetString("md")
	}
	if changed("xlsx") {
		cfg.Output.XLSXPath, _ = flags.GetString("xlsx")
	}
	if changed("metrics-file") {
		cfg.Telemetry.MetricsFile, _ = flags.GetString("metrics-file")
	}
	if changed("trace") {
		cfg.Telemetry.Trace, _ = flags.GetBool("trace")
	}
	if changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	if changed("no-footer") {
		cfg.Output.IncludeFooter = !noFooter
	}
	if llmEnabled {
		cfg.LLM.Provider = llmProvider
		cfg.LLM.Model = llmModel
	}
	cfg.Output.Verbose = verbose
}

// buildConfig loads, overrides and validates the configuration
func buildConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)
	if err := validate.Config(cfg); err != nil {
		return nil, err
	}
	if err := applyLLMEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runAnalysis(cmd *cobra.Command, args []string) (err error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	logger := newLogger()
	tel, err := telemetry.New(cfg.Telemetry.Trace, os.Stderr, logger)
	if err != nil {
		return err
	}
	defer func() {
		if shutdownErr := tel.Shutdown(context.Background()); shutdownErr != nil && err == nil {
			err = fmt.Errorf("shutdown telemetry: %w", shutdownErr)
		}
	}()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Libertas Analysis\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Freedom:      %s (%d)\n", cfg.Data.FreedomPath, cfg.Analysis.ReportingYear)
	fmt.Fprintf(os.Stderr, "  Stringency:   %s (%s)\n", cfg.Data.StringencyPath, cfg.Analysis.ReferenceDate)
	fmt.Fprintf(os.Stderr, "  Clusters:     %d (%d restarts, seed %d)\n", cfg.Clustering.K, cfg.Clustering.Restarts, cfg.Clustering.Seed)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Clustering.Workers)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	p, err := pipeline.NewPipeline(cfg, tel, logger)
	if err != nil {
		return err
	}

	// The elbow sweep shares the pipeline cache with the run below
	if elbowTo > 0 {
		if elbowFrom < 1 || elbowTo < elbowFrom {
			return fmt.Errorf("invalid elbow range: --elbow-from %d --elbow-to %d", elbowFrom, elbowTo)
		}
		results, err := p.Sweep(ctx, elbowFrom, elbowTo)
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		printSweep(results)
	}

	report, runErr := p.Run(ctx)
	if report != nil {
		// Clusters and averages are printed even when the trend failed
		if err := p.Renderer().RenderSummary(os.Stdout, report); err != nil {
			logger.Warn("Failed to print summary", "error", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "\n✓ Clustered %d countries into %d groups (inertia %.4f)\n",
			len(report.Clusters.Countries()), report.Clusters.K(), report.Clusters.Inertia)
		if report.LLM != nil && report.LLM.Enabled {
			fmt.Fprintf(os.Stderr, "✓ Generated LLM summary using %s/%s\n", report.LLM.Provider, report.LLM.Model)
		}
	}

	// Render outputs
	artifacts, err := p.RenderReport(report)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	fmt.Fprintln(os.Stderr)
	for _, a := range artifacts {
		fmt.Fprintf(os.Stderr, "✓ %s: %s\n", a.Kind, a.Path)
	}

	return nil
}
