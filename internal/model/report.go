package model

import "time"

// Report represents the complete analysis output of one run
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Sources     Sources   `json:"sources"`

	ReportingYear int            `json:"reporting_year"`
	ReferenceDate string         `json:"reference_date"`
	Seasons       []SeasonWindow `json:"seasons"`

	SharedCountries []CountryCode `json:"shared_countries"`
	Excluded        []Exclusion   `json:"excluded,omitempty"` // Shared but feature-incomplete

	Clusters  ClusterAssignment `json:"clusters"`
	Summaries []ClusterSummary  `json:"summaries"` // Values rounded to 4 places

	Trend       *TrendLine   `json:"trend,omitempty"`
	TrendPoints []TrendPoint `json:"trend_points,omitempty"`

	Signals []Signal `json:"signals,omitempty"`

	LLM *LLMSummary `json:"llm,omitempty"` // Optional narrative, never affects numbers
}

// Sources describes the input tables of a run
type Sources struct {
	FreedomPath    string `json:"freedom_path"`
	FreedomRows    int    `json:"freedom_rows"`
	StringencyPath string `json:"stringency_path"`
	StringencyRows int    `json:"stringency_rows"`
}

// FreedomAverages returns the per-cluster freedom means in label order
func (r *Report) FreedomAverages() []Mean {
	out := make([]Mean, len(r.Summaries))
	for i, s := range r.Summaries {
		out[i] = s.Freedom
	}
	return out
}

// ReferenceAverages returns the per-cluster reference-date means in label order
func (r *Report) ReferenceAverages() []Mean {
	out := make([]Mean, len(r.Summaries))
	for i, s := range r.Summaries {
		out[i] = s.Reference
	}
	return out
}

// Signal represents a diagnostic note attached to a report
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalEmptyAggregate  SignalType = "empty_aggregate"  // A cluster/metric pair had no data
	SignalExcludedCountry SignalType = "excluded_country" // Shared country without complete features
	SignalTrendSkipped    SignalType = "trend_skipped"    // Countries without a trend pair
	SignalNotConverged    SignalType = "not_converged"    // k-means hit the iteration cap
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// LLMSummary contains optional LLM-generated narrative
type LLMSummary struct {
	Enabled      bool          `json:"enabled"`
	Provider     string        `json:"provider,omitempty"`
	Model        string        `json:"model,omitempty"`
	SummaryMD    string        `json:"summary_md,omitempty"`
	ClusterNotes []ClusterNote `json:"cluster_notes,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// ClusterNote is the generated note on a single cluster
type ClusterNote struct {
	Label int    `json:"label"`
	Text  string `json:"text"`
}
