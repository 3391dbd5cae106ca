package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ppiankov/libertas/internal/aggregate"
	"github.com/ppiankov/libertas/internal/cache"
	"github.com/ppiankov/libertas/internal/cluster"
	"github.com/ppiankov/libertas/internal/dataset"
	"github.com/ppiankov/libertas/internal/extract"
	"github.com/ppiankov/libertas/internal/llm"
	"github.com/ppiankov/libertas/internal/match"
	"github.com/ppiankov/libertas/internal/model"
	"github.com/ppiankov/libertas/internal/telemetry"
	"github.com/ppiankov/libertas/internal/trend"
	"github.com/ppiankov/libertas/internal/worker"
)

// Pipeline orchestrates the complete analysis
type Pipeline struct {
	loader     *dataset.Loader
	extractor  *extract.FeatureExtractor
	clusterer  worker.Clusterer // Engine, memoized when the cache is enabled
	renderer   *Renderer
	summarizer *llm.Summarizer // Optional LLM summarizer (nil if disabled)
	telemetry  *telemetry.Telemetry
	logger     *slog.Logger
	config     *model.Config
}

// NewPipeline creates a new pipeline with the given configuration.
// tel may be nil, in which case spans are discarded.
func NewPipeline(cfg *model.Config, tel *telemetry.Telemetry, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if tel == nil {
		t, err := telemetry.New(false, nil, logger)
		if err != nil {
			return nil, err
		}
		tel = t
	}

	engine := cluster.NewEngine(cfg.Clustering, logger)

	// One cache serves parsed tables and partitions, so a sweep followed
	// by a run in the same process reads and clusters each input once
	var c cache.Cache
	var clusterer worker.Clusterer = engine
	if cfg.Cache.Enabled {
		c = cache.NewMemoryCache(cfg.Cache.TTL, 2*cfg.Cache.TTL)
		clusterer = cluster.NewCached(engine, c, engine.Fingerprint())
	}

	// Create LLM summarizer if configured
	var summarizer *llm.Summarizer
	if cfg.LLM.Provider != "" {
		s, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			logger.Warn("Failed to initialize LLM provider", "error", err)
		} else {
			summarizer = s
		}
	}

	return &Pipeline{
		loader:     dataset.NewLoader(c, logger),
		extractor:  extract.NewFeatureExtractor(),
		clusterer:  clusterer,
		renderer:   NewRenderer(cfg.Output.IncludeFooter),
		summarizer: summarizer,
		telemetry:  tel,
		logger:     logger,
		config:     cfg,
	}, nil
}

// Prepared holds the loaded tables and the feature set derived from them
type Prepared struct {
	Tables   *dataset.Tables
	Shared   []model.CountryCode
	Features model.Features
	Excluded []model.Exclusion
}

// Prepare loads both tables, derives the shared countries and extracts
// the feature vectors of the reporting year
func (p *Pipeline) Prepare(ctx context.Context) (*Prepared, error) {
	cfg := p.config
	metrics := p.telemetry.Metrics()

	// 1. Load both tables
	stageCtx, end := p.telemetry.StartStage(ctx, "load",
		attribute.String("freedom_path", cfg.Data.FreedomPath),
		attribute.String("stringency_path", cfg.Data.StringencyPath))
	tables, err := p.loader.Load(stageCtx, cfg.Data.FreedomPath, cfg.Data.StringencyPath)
	end(err)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	metrics.RowsRead.WithLabelValues("freedom").Set(float64(len(tables.Freedom)))
	metrics.RowsRead.WithLabelValues("stringency").Set(float64(len(tables.Stringency)))

	// 2. Shared country universe
	_, end = p.telemetry.StartStage(ctx, "match")
	shared := match.SharedCountries(tables.Freedom, tables.Stringency, cfg.Analysis.ReportingYear)
	end(nil)
	metrics.Countries.WithLabelValues("shared").Set(float64(len(shared)))

	// 3. Feature vectors
	_, end = p.telemetry.StartStage(ctx, "extract")
	features, excluded := p.extractor.Extract(tables.Freedom, shared, cfg.Analysis.ReportingYear)
	end(nil)
	metrics.Countries.WithLabelValues("excluded").Set(float64(len(excluded)))

	p.logger.Info("Prepared feature set",
		slog.Int("shared", len(shared)),
		slog.Int("complete", len(features)),
		slog.Int("excluded", len(excluded)))
	for _, ex := range excluded {
		p.logger.Debug("Excluded country", "country", ex.Country, "column", ex.Column, "value", ex.Value)
	}

	return &Prepared{
		Tables:   tables,
		Shared:   shared,
		Features: features,
		Excluded: excluded,
	}, nil
}

// Run executes every stage and returns the report.
//
// A trend that cannot be fitted (too few pairs or constant freedom scores)
// returns the otherwise complete report together with the error, so the
// caller can still show the clusters and averages.
func (p *Pipeline) Run(ctx context.Context) (*model.Report, error) {
	cfg := p.config
	metrics := p.telemetry.Metrics()

	windows, err := cfg.Analysis.SeasonWindows()
	if err != nil {
		return nil, err
	}
	reference, err := cfg.Analysis.Reference()
	if err != nil {
		return nil, err
	}

	// 1-3. Load, match, extract
	prep, err := p.Prepare(ctx)
	if err != nil {
		return nil, err
	}

	// 4. Cluster
	stageCtx, end := p.telemetry.StartStage(ctx, "cluster", attribute.Int("k", cfg.Clustering.K))
	assign, err := p.clusterer.Cluster(stageCtx, prep.Features, cfg.Clustering.K)
	end(err)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}
	metrics.Countries.WithLabelValues("clustered").Set(float64(len(assign.Countries())))
	metrics.Inertia.Set(assign.Inertia)
	metrics.Iterations.Set(float64(assign.Iterations))
	for _, g := range assign.Groups {
		metrics.ClusterSize.WithLabelValues(strconv.Itoa(g.Label)).Set(float64(len(g.Countries)))
	}

	// 5. Aggregate
	_, end = p.telemetry.StartStage(ctx, "aggregate")
	freedomMeans, errF := aggregate.FreedomAverages(assign, prep.Tables.Freedom, cfg.Analysis.ReportingYear)
	referenceMeans, errR := aggregate.ReferenceDateAverages(assign, prep.Tables.Stringency, reference)
	seasonalMeans, errS := aggregate.SeasonalAverages(assign, prep.Tables.Stringency, windows)
	emptyErr := model.MergeEmptyAggregates(errF, errR, errS)
	end(emptyErr)
	if emptyErr != nil {
		var e *model.EmptyAggregateError
		if errors.As(emptyErr, &e) {
			metrics.EmptyAggregates.Add(float64(len(e.Missing)))
		}
		if cfg.Aggregation.Strict {
			return nil, fmt.Errorf("aggregate: %w", emptyErr)
		}
		p.logger.Warn("Empty aggregates reported as missing", "error", emptyErr)
	}

	// 6. Build report
	report := &model.Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Sources: model.Sources{
			FreedomPath:    cfg.Data.FreedomPath,
			FreedomRows:    len(prep.Tables.Freedom),
			StringencyPath: cfg.Data.StringencyPath,
			StringencyRows: len(prep.Tables.Stringency),
		},
		ReportingYear:   cfg.Analysis.ReportingYear,
		ReferenceDate:   cfg.Analysis.ReferenceDate,
		Seasons:         windows,
		SharedCountries: prep.Shared,
		Excluded:        prep.Excluded,
		Clusters:        assign,
		Summaries:       summarize(assign, freedomMeans, referenceMeans, seasonalMeans),
		Signals:         aggregate.Signals(emptyErr),
	}
	report.Signals = append(report.Signals, exclusionSignals(prep.Excluded)...)
	if !assign.Converged {
		report.Signals = append(report.Signals, model.Signal{
			Type:        model.SignalNotConverged,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("k-means stopped at the %d-iteration cap before converging", assign.Iterations),
		})
	}

	// 7. Trend
	_, end = p.telemetry.StartStage(ctx, "trend")
	points, skipped := trend.Points(assign, prep.Tables.Freedom, prep.Tables.Stringency, cfg.Analysis.ReportingYear, reference)
	x, y := trend.XY(points)
	line, err := trend.Fit(x, y)
	end(err)
	report.TrendPoints = points
	metrics.Countries.WithLabelValues("trend").Set(float64(len(points)))
	if len(skipped) > 0 {
		report.Signals = append(report.Signals, model.Signal{
			Type:        model.SignalTrendSkipped,
			Severity:    model.SeverityInfo,
			Description: fmt.Sprintf("%d clustered countries lack a freedom score or a %s stringency value", len(skipped), cfg.Analysis.ReferenceDate),
			Data:        map[string]interface{}{"countries": skipped},
		})
	}
	if err != nil {
		return report, fmt.Errorf("trend: %w", err)
	}
	report.Trend = &model.TrendLine{
		Slope:     model.Round4(line.Slope),
		Intercept: model.Round4(line.Intercept),
		RSquared:  model.Round4(line.RSquared),
		N:         line.N,
	}
	metrics.TrendSlope.Set(line.Slope)
	metrics.TrendRSquared.Set(line.RSquared)

	// 8. Generate LLM summary if enabled (AFTER all numbers are final, never affects them)
	if p.summarizer != nil && p.summarizer.IsEnabled() {
		stageCtx, end := p.telemetry.StartStage(ctx, "llm", attribute.String("provider", p.summarizer.ProviderName()))
		llmSummary, err := p.summarizer.GenerateSummary(stageCtx, *report)
		end(err)
		if err != nil {
			p.logger.Warn("LLM summary generation failed", "error", err)
		} else if llmSummary != nil {
			report.LLM = llmSummary
		}
	}

	return report, nil
}

// Sweep clusters the prepared feature set once per k in [from, to]
func (p *Pipeline) Sweep(ctx context.Context, from, to int) ([]*worker.SweepResult, error) {
	prep, err := p.Prepare(ctx)
	if err != nil {
		return nil, err
	}

	stageCtx, end := p.telemetry.StartStage(ctx, "sweep", attribute.Int("from", from), attribute.Int("to", to))
	results := worker.NewSweepProcessor(p.clusterer, p.config.Clustering.Workers).Process(stageCtx, prep.Features, from, to)
	err = ctx.Err()
	end(err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// summarize combines the per-cluster averages, rounded for presentation
func summarize(assign model.ClusterAssignment, freedom, reference map[int]model.Mean, seasonal map[int][]model.Mean) []model.ClusterSummary {
	out := make([]model.ClusterSummary, len(assign.Groups))
	for i, g := range assign.Groups {
		seasons := make([]model.Mean, len(seasonal[g.Label]))
		for w, m := range seasonal[g.Label] {
			seasons[w] = m.Rounded()
		}
		out[i] = model.ClusterSummary{
			Label:     g.Label,
			Countries: g.Countries,
			Freedom:   freedom[g.Label].Rounded(),
			Reference: reference[g.Label].Rounded(),
			Seasonal:  seasons,
		}
	}
	return out
}

func exclusionSignals(excluded []model.Exclusion) []model.Signal {
	signals := make([]model.Signal, 0, len(excluded))
	for _, ex := range excluded {
		signals = append(signals, model.Signal{
			Type:        model.SignalExcludedCountry,
			Severity:    model.SeverityInfo,
			Description: fmt.Sprintf("%s excluded: %s is %q", ex.Country, ex.Column, ex.Value),
			Data: map[string]interface{}{
				"country": ex.Country,
				"column":  ex.Column,
			},
		})
	}
	return signals
}
