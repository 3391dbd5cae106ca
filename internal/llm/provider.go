package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/libertas/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize generates a narrative of the report restricted to its countries
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	// Report is the analysis report to summarize
	Report model.Report

	// Countries is the allowlist of country codes the narrative may mention.
	// Codes outside it are flagged after generation.
	Countries []model.CountryCode

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	// Summary is the generated summary text
	Summary string

	// MentionedCountries are the country codes found in the summary
	MentionedCountries []model.CountryCode

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// RequestsPerSecond throttles calls per provider; 0 disables throttling
	RequestsPerSecond float64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:          "", // Disabled by default
		Model:             "",
		Timeout:           30,
		MaxTokens:         800,
		RequestsPerSecond: 1,
	}
}

const systemPrompt = "You are a helpful assistant that describes libertas cluster reports using only the numbers and countries given to you."

// BuildPrompt constructs the default prompt for summarization
func BuildPrompt(report model.Report, countries []model.CountryCode) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are summarizing a libertas report. libertas groups countries by seven freedom-of-expression sub-indicators and compares the pandemic response stringency of each group. It describes association only, never causation.

CRITICAL RULES:
1. You MUST ONLY mention country codes from this allowed list:
%s

2. DO NOT infer, speculate, or bring in outside facts about these countries.
3. If a value is reported as n/a, say that it is missing. Never guess it.
4. Describe groups and trends, not causes. Use phrases like:
   - "Cluster 2 averaged ..."
   - "Stringency was higher in ..."
5. Never claim statistical significance.

Report Summary:
- Reporting year: %d
- Reference date: %s
- Clusters: %d
- Countries clustered: %d
- Countries excluded: %d
`, joinCountries(countries), report.ReportingYear, report.ReferenceDate,
		report.Clusters.K(), len(report.Clusters.Countries()), len(report.Excluded))

	if report.Trend != nil {
		fmt.Fprintf(&b, "- Trend: stringency = %.2f x freedom + %.2f (R² %.2f, %d countries)\n",
			report.Trend.Slope, report.Trend.Intercept, report.Trend.RSquared, report.Trend.N)
	}

	b.WriteString("\nClusters:\n")
	for _, s := range report.Summaries {
		fmt.Fprintf(&b, "- Cluster %d (%d countries): freedom %s, stringency on %s %s\n",
			s.Label, len(s.Countries), formatMean(s.Freedom), report.ReferenceDate, formatMean(s.Reference))
	}

	if len(report.Signals) > 0 {
		b.WriteString("\nKey Signals:\n")
		// Add top 3 signals
		for i, signal := range report.Signals {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "- %s: %s\n", signal.Type, signal.Description)
		}
	}

	b.WriteString("\nProvide a 3-4 sentence summary of how the clusters differ in stringency.")

	return b.String()
}

// BuildClusterPrompt asks for a short note on one cluster against the others
func BuildClusterPrompt(report model.Report, cluster model.ClusterSummary, countries []model.CountryCode) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are describing one cluster of a libertas report. It describes association only, never causation.

CRITICAL RULES:
1. You MUST ONLY mention country codes from this allowed list:
%s

2. DO NOT infer, speculate, or bring in outside facts about these countries.
3. If a value is reported as n/a, say that it is missing. Never guess it.

Cluster %d:
- Members:%s
- Freedom of expression average (%d): %s
- Stringency average on %s: %s
`, joinCountries(countries), cluster.Label, joinCountries(cluster.Countries),
		report.ReportingYear, formatMean(cluster.Freedom), report.ReferenceDate, formatMean(cluster.Reference))

	b.WriteString("\nOther clusters:\n")
	for _, s := range report.Summaries {
		if s.Label == cluster.Label {
			continue
		}
		fmt.Fprintf(&b, "- Cluster %d (%d countries): freedom %s, stringency %s\n",
			s.Label, len(s.Countries), formatMean(s.Freedom), formatMean(s.Reference))
	}

	fmt.Fprintf(&b, "\nProvide 1-2 sentences on how cluster %d compares with the others.", cluster.Label)

	return b.String()
}

// Helper functions

func joinCountries(countries []model.CountryCode) string {
	if len(countries) == 0 {
		return "(No countries available)"
	}
	var b strings.Builder
	for i, c := range countries {
		if i >= 60 { // Limit to avoid token bloat
			fmt.Fprintf(&b, "\n... and %d more countries", len(countries)-60)
			break
		}
		if i%20 == 0 {
			b.WriteString("\n-")
		}
		fmt.Fprintf(&b, " %s", c)
	}
	return b.String()
}

func formatMean(m model.Mean) string {
	if m.Missing() {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", m.Value)
}

var countryPattern = regexp.MustCompile(`\b[A-Z]{3}\b`)

// extractCountries returns the distinct ISO-like codes mentioned in text
func extractCountries(text string) []model.CountryCode {
	matches := countryPattern.FindAllString(text, -1)

	// Deduplicate
	seen := make(map[string]bool)
	var unique []model.CountryCode
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			unique = append(unique, model.CountryCode(m))
		}
	}

	return unique
}

// contains checks if a slice contains a country
func contains(slice []model.CountryCode, item model.CountryCode) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
