package pipeline

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/libertas/internal/model"
)

func sampleReport() *model.Report {
	spring := model.SeasonWindow{
		Name:  "spring",
		Start: time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	return &model.Report{
		RunID:         "run-1",
		GeneratedAt:   time.Date(2021, 1, 5, 12, 0, 0, 0, time.UTC),
		ReportingYear: 2017,
		ReferenceDate: "2020-12-31",
		Seasons:       []model.SeasonWindow{spring},
		SharedCountries: []model.CountryCode{
			"ALB", "ARG", "DZA",
		},
		Excluded: []model.Exclusion{{Country: "DZA", Column: "pf_expression_cable", Value: ""}},
		Clusters: model.ClusterAssignment{
			Groups: []model.ClusterGroup{
				{Label: 0, Countries: []model.CountryCode{"ALB"}},
				{Label: 1, Countries: []model.CountryCode{"ARG"}},
			},
			Converged: true,
		},
		Summaries: []model.ClusterSummary{
			{Label: 0, Countries: []model.CountryCode{"ALB"}, Freedom: model.Mean{Value: 8.5, Count: 1}, Reference: model.Mean{Value: 41.67, Count: 1}, Seasonal: []model.Mean{{}}},
			{Label: 1, Countries: []model.CountryCode{"ARG"}, Freedom: model.Mean{Value: 7.25, Count: 1}, Reference: model.Mean{Value: 60.19, Count: 1}, Seasonal: []model.Mean{{Value: 88.1234, Count: 40}}},
		},
		Trend: &model.TrendLine{Slope: -14.5678, Intercept: 165.1249, RSquared: 0.5, N: 2},
		TrendPoints: []model.TrendPoint{
			{Country: "ALB", Cluster: 0, Freedom: 8.5, Stringency: 41.67},
			{Country: "ARG", Cluster: 1, Freedom: 7.25, Stringency: 60.19},
		},
		Signals: []model.Signal{
			{Type: model.SignalEmptyAggregate, Severity: model.SeverityWarning, Description: "Cluster 0 has no data for season:spring"},
			{Type: model.SignalExcludedCountry, Severity: model.SeverityInfo, Description: "DZA excluded"},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := NewRenderer(true).Markdown(sampleReport())

	assert.Contains(t, md, "| 0 | ALB | 8.5000 | 41.6700 |")
	assert.Contains(t, md, "| 0 | n/a |", "missing seasonal mean is never zero")
	assert.Contains(t, md, "| 1 | 88.1234 |")
	assert.Contains(t, md, "spring [2020-04-01, 2020-06-01)")
	assert.Contains(t, md, "- DZA: `pf_expression_cable` is blank")
	assert.Contains(t, md, "**empty_aggregate** (warning)")
	assert.NotContains(t, md, "DZA excluded", "info signals stay out of the signal list")
	assert.Contains(t, md, "no significance testing")

	noFooter := NewRenderer(false).Markdown(sampleReport())
	assert.NotContains(t, noFooter, "no significance testing")
}

func TestMarkdown_NoTrend(t *testing.T) {
	report := sampleReport()
	report.Trend = nil

	assert.Contains(t, NewRenderer(false).Markdown(report), "_No trend fitted._")
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(false).RenderSummary(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "Clusters (k=2, 2 countries):")
	assert.Contains(t, out, "  1: ARG")
	assert.Contains(t, out, "Freedom averages (2017):\n  [8.5000, 7.2500]")
	assert.Contains(t, out, "Final response averages (2020-12-31):\n  [41.6700, 60.1900]")
	assert.Contains(t, out, "Trend: y = -14.57x + 165.12")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestRenderSummary_WriteError(t *testing.T) {
	err := NewRenderer(false).RenderSummary(failingWriter{}, sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestPlotTitle(t *testing.T) {
	report := sampleReport()
	assert.Equal(t,
		"COVID Response Stringency vs. Freedom of Expression (12/31/2020)\nLinear Regression: y = -14.57x + 165.12",
		PlotTitle(report))

	report.Trend = nil
	assert.Equal(t, "COVID Response Stringency vs. Freedom of Expression (12/31/2020)", PlotTitle(report))
}

func TestPlotRenderer_Render(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images", "final.png")
	require.NoError(t, NewPlotRenderer(plotWidth, plotHeight).Render(sampleReport(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestRenderJSON_MissingMeanIsNull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, NewRenderer(false).RenderJSON(sampleReport(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value": null`)
}
