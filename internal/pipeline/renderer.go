package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/ppiankov/libertas/internal/model"
)

// Renderer renders reports as JSON, Markdown and a console summary
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a new renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes a human-readable report
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// RenderLLMMarkdown writes the separate LLM narrative document
func (r *Renderer) RenderLLMMarkdown(content, path string) error {
	return writeFile(path, []byte(content))
}

// Markdown renders the report body
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	b.WriteString("# Freedom of Expression and COVID Response Stringency\n\n")
	fmt.Fprintf(&b, "- **Run**: `%s`\n", report.RunID)
	fmt.Fprintf(&b, "- **Generated**: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- **Freedom data**: `%s` (%d rows)\n", report.Sources.FreedomPath, report.Sources.FreedomRows)
	fmt.Fprintf(&b, "- **Stringency data**: `%s` (%d rows)\n", report.Sources.StringencyPath, report.Sources.StringencyRows)
	fmt.Fprintf(&b, "- **Reporting year**: %d\n", report.ReportingYear)
	fmt.Fprintf(&b, "- **Reference date**: %s\n", report.ReferenceDate)
	fmt.Fprintf(&b, "- **Shared countries**: %d (%d excluded for incomplete sub-indicators)\n\n",
		len(report.SharedCountries), len(report.Excluded))

	b.WriteString("## Clusters\n\n")
	b.WriteString("| Cluster | Countries | Freedom | Stringency " + report.ReferenceDate + " |\n")
	b.WriteString("|---:|---|---:|---:|\n")
	for _, s := range report.Summaries {
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n",
			s.Label, joinCodes(s.Countries), formatMean(s.Freedom), formatMean(s.Reference))
	}

	if len(report.Seasons) > 0 {
		b.WriteString("\n## Seasonal Stringency\n\n")
		b.WriteString("| Cluster |")
		for _, w := range report.Seasons {
			fmt.Fprintf(&b, " %s |", w.Name)
		}
		b.WriteString("\n|---:|")
		for range report.Seasons {
			b.WriteString("---:|")
		}
		b.WriteString("\n")
		for _, s := range report.Summaries {
			fmt.Fprintf(&b, "| %d |", s.Label)
			for _, m := range s.Seasonal {
				fmt.Fprintf(&b, " %s |", formatMean(m))
			}
			b.WriteString("\n")
		}
		b.WriteString("\nWindows are half-open: ")
		for i, w := range report.Seasons {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s [%s, %s)", w.Name, w.Start.Format(model.DateLayout), w.End.Format(model.DateLayout))
		}
		b.WriteString(".\n")
	}

	b.WriteString("\n## Trend\n\n")
	if report.Trend != nil {
		fmt.Fprintf(&b, "Stringency on %s = %.4f × freedom + %.4f (R² = %.4f, n = %d)\n",
			report.ReferenceDate, report.Trend.Slope, report.Trend.Intercept, report.Trend.RSquared, report.Trend.N)
	} else {
		b.WriteString("_No trend fitted._\n")
	}

	if len(report.Excluded) > 0 {
		b.WriteString("\n## Excluded Countries\n\n")
		for _, ex := range report.Excluded {
			value := ex.Value
			if value == "" {
				value = "blank"
			}
			fmt.Fprintf(&b, "- %s: `%s` is %s\n", ex.Country, ex.Column, value)
		}
	}

	var warnings []model.Signal
	for _, s := range report.Signals {
		if s.Severity != model.SeverityInfo {
			warnings = append(warnings, s)
		}
	}
	if len(warnings) > 0 {
		b.WriteString("\n## Signals\n\n")
		for _, s := range warnings {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", s.Type, s.Severity, s.Description)
		}
	}

	if r.includeFooter {
		b.WriteString("\n---\n\n")
		b.WriteString("_Clusters are k-means groups of seven freedom-of-expression sub-indicators. ")
		b.WriteString("Averages describe association only; no significance testing is performed._\n")
	}

	return b.String()
}

// RenderSummary prints the cluster partition and averages to w.
// The table is built in memory and written once, so a failing writer
// surfaces as the returned error.
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "\nClusters (k=%d, %d countries):\n", report.Clusters.K(), len(report.Clusters.Countries()))
	for _, g := range report.Clusters.Groups {
		fmt.Fprintf(&b, "  %d: %s\n", g.Label, joinCodes(g.Countries))
	}

	fmt.Fprintf(&b, "\nFreedom averages (%d):\n  %s\n", report.ReportingYear, formatMeans(report.FreedomAverages()))
	fmt.Fprintf(&b, "Final response averages (%s):\n  %s\n", report.ReferenceDate, formatMeans(report.ReferenceAverages()))

	if len(report.Seasons) > 0 {
		fmt.Fprintln(&b, "Seasonal response averages:")
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprint(tw, "  cluster\t")
		for _, s := range report.Seasons {
			fmt.Fprintf(tw, "%s\t", s.Name)
		}
		fmt.Fprintln(tw)
		for _, s := range report.Summaries {
			fmt.Fprintf(tw, "  %d\t", s.Label)
			for _, m := range s.Seasonal {
				fmt.Fprintf(tw, "%s\t", formatMean(m))
			}
			fmt.Fprintln(tw)
		}
		if err := tw.Flush(); err != nil {
			return fmt.Errorf("failed to format seasonal table: %w", err)
		}
	}

	if report.Trend != nil {
		fmt.Fprintf(&b, "Trend: y = %.2fx + %.2f (R² %.2f, n=%d)\n",
			report.Trend.Slope, report.Trend.Intercept, report.Trend.RSquared, report.Trend.N)
	}

	if _, err := w.Write(b.Bytes()); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

func formatMean(m model.Mean) string {
	if m.Missing() {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", m.Value)
}

func formatMeans(means []model.Mean) string {
	parts := make([]string, len(means))
	for i, m := range means {
		parts[i] = formatMean(m)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func joinCodes(codes []model.CountryCode) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

// writeFile writes data to path, creating parent directories
func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
