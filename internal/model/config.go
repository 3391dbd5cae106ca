package model

import (
	"fmt"
	"runtime"
	"time"
)

// Config is the complete libertas configuration.
// Every constant the analysis depends on lives here so runs can substitute
// other years, dates, seasons, cluster counts or datasets.
type Config struct {
	Data        DataConfig        `yaml:"data" json:"data" mapstructure:"data"`
	Analysis    AnalysisConfig    `yaml:"analysis" json:"analysis" mapstructure:"analysis"`
	Clustering  ClusteringConfig  `yaml:"clustering" json:"clustering" mapstructure:"clustering"`
	Aggregation AggregationConfig `yaml:"aggregation" json:"aggregation" mapstructure:"aggregation"`
	Output      OutputConfig      `yaml:"output" json:"output" mapstructure:"output"`
	Cache       CacheConfig       `yaml:"cache" json:"cache" mapstructure:"cache"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" json:"telemetry" mapstructure:"telemetry"`
	LLM         LLMConfig         `yaml:"llm" json:"llm" mapstructure:"llm"`
}

// DataConfig locates the two source tables (.csv or .xlsx)
type DataConfig struct {
	FreedomPath    string `yaml:"freedom_path" json:"freedom_path" mapstructure:"freedom_path" validate:"required"`
	StringencyPath string `yaml:"stringency_path" json:"stringency_path" mapstructure:"stringency_path" validate:"required"`
}

// AnalysisConfig fixes the reporting year, the reference date and the season windows
type AnalysisConfig struct {
	ReportingYear int            `yaml:"reporting_year" json:"reporting_year" mapstructure:"reporting_year" validate:"gt=0"`
	ReferenceDate string         `yaml:"reference_date" json:"reference_date" mapstructure:"reference_date" validate:"required,datetime=2006-01-02"`
	Seasons       []SeasonConfig `yaml:"seasons" json:"seasons" mapstructure:"seasons" validate:"min=1,dive"`
}

// SeasonConfig is the textual form of a SeasonWindow
type SeasonConfig struct {
	Name  string `yaml:"name" json:"name" mapstructure:"name" validate:"required"`
	Start string `yaml:"start" json:"start" mapstructure:"start" validate:"required,datetime=2006-01-02"`
	End   string `yaml:"end" json:"end" mapstructure:"end" validate:"required,datetime=2006-01-02"`
}

// ClusteringConfig tunes k-means
type ClusteringConfig struct {
	K             int     `yaml:"k" json:"k" mapstructure:"k" validate:"min=1"`
	Restarts      int     `yaml:"restarts" json:"restarts" mapstructure:"restarts" validate:"min=10"`
	MaxIterations int     `yaml:"max_iterations" json:"max_iterations" mapstructure:"max_iterations" validate:"min=1"`
	Tolerance     float64 `yaml:"tolerance" json:"tolerance" mapstructure:"tolerance" validate:"gte=0"`
	Seed          uint64  `yaml:"seed" json:"seed" mapstructure:"seed"`
	Workers       int     `yaml:"workers" json:"workers" mapstructure:"workers" validate:"min=1"`
}

// AggregationConfig selects the empty-aggregate policy.
// Strict aborts the run on any empty (cluster, metric) pair; otherwise the
// pair is reported as missing.
type AggregationConfig struct {
	Strict bool `yaml:"strict" json:"strict" mapstructure:"strict"`
}

// OutputConfig holds artifact paths. Empty paths are skipped, except
// PlotPath and JSONPath which default to the results/ tree.
type OutputConfig struct {
	JSONPath      string `yaml:"json_path" json:"json_path" mapstructure:"json_path"`
	MDPath        string `yaml:"md_path" json:"md_path" mapstructure:"md_path"`
	PlotPath      string `yaml:"plot_path" json:"plot_path" mapstructure:"plot_path"`
	XLSXPath      string `yaml:"xlsx_path" json:"xlsx_path" mapstructure:"xlsx_path"`
	Verbose       bool   `yaml:"verbose" json:"verbose" mapstructure:"verbose"`
	IncludeFooter bool   `yaml:"include_footer" json:"include_footer" mapstructure:"include_footer"`
}

// CacheConfig controls in-run memoization of parsed tables
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" json:"ttl" mapstructure:"ttl"`
}

// TelemetryConfig enables per-stage tracing and a metrics textfile
type TelemetryConfig struct {
	Trace       bool   `yaml:"trace" json:"trace" mapstructure:"trace"`
	MetricsFile string `yaml:"metrics_file" json:"metrics_file" mapstructure:"metrics_file"`
}

// LLMConfig holds optional narrative summary settings
type LLMConfig struct {
	Provider          string  `yaml:"provider" json:"provider" mapstructure:"provider"` // openai, ollama, "" (disabled)
	Model             string  `yaml:"model" json:"model" mapstructure:"model"`
	APIKey            string  `yaml:"-" json:"-" mapstructure:"api_key"` // Never written to disk
	BaseURL           string  `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
	Timeout           int     `yaml:"timeout" json:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens         int     `yaml:"max_tokens" json:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" mapstructure:"requests_per_second"`
}

// DefaultConfig returns the reference pipeline configuration
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			FreedomPath:    "data/human-freedom-index-2019.csv",
			StringencyPath: "data/covid-stringency-index.csv",
		},
		Analysis: AnalysisConfig{
			ReportingYear: 2017,
			ReferenceDate: "2020-12-31",
			Seasons: []SeasonConfig{
				{Name: "spring", Start: "2020-04-01", End: "2020-06-01"},
				{Name: "summer", Start: "2020-06-01", End: "2020-09-01"},
				{Name: "fall", Start: "2020-09-01", End: "2020-12-01"},
			},
		},
		Clustering: ClusteringConfig{
			K:             4,
			Restarts:      15,
			MaxIterations: 300,
			Tolerance:     1e-4,
			Seed:          0,
			Workers:       runtime.NumCPU(),
		},
		Output: OutputConfig{
			JSONPath:      "results/report.json",
			PlotPath:      "results/images/final.png",
			IncludeFooter: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     30 * time.Minute,
		},
		LLM: LLMConfig{
			Timeout:           30,
			MaxTokens:         800,
			RequestsPerSecond: 1,
		},
	}
}

// SeasonWindows parses the configured seasons
func (c AnalysisConfig) SeasonWindows() ([]SeasonWindow, error) {
	out := make([]SeasonWindow, 0, len(c.Seasons))
	for _, s := range c.Seasons {
		start, err := ParseDate(s.Start)
		if err != nil {
			return nil, fmt.Errorf("season %q start: %w", s.Name, err)
		}
		end, err := ParseDate(s.End)
		if err != nil {
			return nil, fmt.Errorf("season %q end: %w", s.Name, err)
		}
		out = append(out, SeasonWindow{Name: s.Name, Start: start, End: end})
	}
	return out, nil
}

// Reference parses the configured reference date
func (c AnalysisConfig) Reference() (time.Time, error) {
	d, err := ParseDate(c.ReferenceDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("reference date: %w", err)
	}
	return d, nil
}
