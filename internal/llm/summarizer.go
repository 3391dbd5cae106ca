package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/libertas/internal/model"
	"github.com/ppiankov/libertas/internal/worker"
)

// Summarizer produces the optional narrative of a report.
// It runs after every number is final and never changes them.
type Summarizer struct {
	provider Provider
	config   Config
	limiter  *worker.Limiter
}

// NewSummarizer creates a summarizer; a disabled config yields a no-op summarizer
func NewSummarizer(config Config) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}

	return &Summarizer{
		provider: provider,
		config:   config,
		limiter:  worker.NewLimiter(config.RequestsPerSecond, 1),
	}, nil
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s.provider != nil
}

// ProviderName returns the configured provider name, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// GenerateSummary asks the provider for a narrative of report, then for a
// short note on each cluster. Every call waits on the provider's limiter.
// Provider failures are reported as warnings on the summary, not as errors.
func (s *Summarizer) GenerateSummary(ctx context.Context, report model.Report) (*model.LLMSummary, error) {
	if s.provider == nil {
		return nil, nil
	}

	summary := &model.LLMSummary{
		Enabled:  true,
		Provider: s.provider.Name(),
		Model:    s.config.Model,
	}

	if !s.provider.IsAvailable(ctx) {
		summary.Enabled = false
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("LLM provider %s is not available (check API key or endpoint)", s.provider.Name()))
		return summary, nil
	}

	countries := report.Clusters.Countries()
	resp, err := s.summarize(ctx, report, countries, "")
	if err != nil {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("LLM summary generation failed: %v", err))
		return summary, nil
	}

	if resp.Model != "" {
		summary.Model = resp.Model
	}
	summary.SummaryMD = resp.Summary
	tokens := resp.TokensUsed
	mentioned := append([]model.CountryCode(nil), resp.MentionedCountries...)

	for _, cs := range report.Summaries {
		note, err := s.summarize(ctx, report, countries, BuildClusterPrompt(report, cs, countries))
		if err != nil {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("Cluster %d note failed: %v", cs.Label, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		summary.ClusterNotes = append(summary.ClusterNotes, model.ClusterNote{Label: cs.Label, Text: note.Summary})
		tokens += note.TokensUsed
		mentioned = append(mentioned, note.MentionedCountries...)
	}

	summary.Warnings = append(summary.Warnings, fmt.Sprintf("Tokens used: %d", tokens))

	seen := make(map[model.CountryCode]bool)
	var unknown []string
	for _, c := range mentioned {
		if seen[c] {
			continue
		}
		seen[c] = true
		if !contains(countries, c) {
			unknown = append(unknown, string(c))
		}
	}
	if len(unknown) == 0 {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("Verified %d country references against the report", len(seen)))
	} else {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("Summary mentions codes not in this report: %s", strings.Join(unknown, ", ")))
	}

	return summary, nil
}

// summarize makes one rate-limited provider call
func (s *Summarizer) summarize(ctx context.Context, report model.Report, countries []model.CountryCode, prompt string) (*SummarizeResponse, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, s.provider.Name()); err != nil {
			return nil, err
		}
	}
	return s.provider.Summarize(ctx, SummarizeRequest{
		Report:    report,
		Countries: countries,
		Prompt:    prompt,
		Model:     s.config.Model,
		MaxTokens: s.config.MaxTokens,
	})
}

// RenderSeparateMarkdown renders the narrative as a standalone document
func RenderSeparateMarkdown(summary *model.LLMSummary) string {
	if summary == nil || !summary.Enabled {
		return ""
	}

	var b strings.Builder

	b.WriteString("# LLM Summary\n\n")
	b.WriteString("> **GENERATED CONTENT**: This narrative was written by a language model from the report below.\n")
	b.WriteString("> All clusters, averages and the trend line were determined independently; the model cannot change them.\n\n")

	fmt.Fprintf(&b, "- **Provider**: %s\n", summary.Provider)
	if summary.Model != "" {
		fmt.Fprintf(&b, "- **Model**: %s\n", summary.Model)
	}
	b.WriteString("\n## Summary\n\n")

	if summary.SummaryMD == "" {
		b.WriteString("_No summary generated._\n")
	} else {
		b.WriteString(summary.SummaryMD)
		b.WriteString("\n")
	}

	if len(summary.ClusterNotes) > 0 {
		b.WriteString("\n## Clusters\n\n")
		for _, n := range summary.ClusterNotes {
			fmt.Fprintf(&b, "### Cluster %d\n\n%s\n\n", n.Label, n.Text)
		}
	}

	if len(summary.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range summary.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}
