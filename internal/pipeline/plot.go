package pipeline

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/ppiankov/libertas/internal/model"
)

// Axis ranges of the stringency scatter
const (
	freedomMax    = 10.0
	stringencyMax = 100.0
)

// PlotRenderer draws the stringency-versus-freedom scatter with its trend line
type PlotRenderer struct {
	width, height vg.Length
}

// NewPlotRenderer creates a plot renderer for images of the given size
func NewPlotRenderer(width, height vg.Length) *PlotRenderer {
	return &PlotRenderer{width: width, height: height}
}

// Render saves the plot to path; the image format follows the extension
func (r *PlotRenderer) Render(report *model.Report, path string) error {
	p, err := r.build(report)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if err := p.Save(r.width, r.height, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}

func (r *PlotRenderer) build(report *model.Report) (*plot.Plot, error) {
	p := plot.New()

	p.Title.Text = PlotTitle(report)
	p.X.Label.Text = "Freedom of Expression Index"
	p.Y.Label.Text = "COVID Response Stringency Index"
	p.X.Min, p.X.Max = 0, freedomMax
	p.Y.Min, p.Y.Max = 0, stringencyMax
	p.Add(plotter.NewGrid())

	if report.Trend != nil {
		line := *report.Trend
		fn := plotter.NewFunction(line.At)
		fn.XMin, fn.XMax = 0, freedomMax
		fn.Samples = 1000
		fn.Color = plotutil.Color(0)
		fn.Width = vg.Points(1.5)
		p.Add(fn)
	}

	// One scatter series per cluster so points are coloured by membership
	byCluster := make(map[int]plotter.XYs)
	for _, pt := range report.TrendPoints {
		byCluster[pt.Cluster] = append(byCluster[pt.Cluster], plotter.XY{X: pt.Freedom, Y: pt.Stringency})
	}
	for _, g := range report.Clusters.Groups {
		xys, ok := byCluster[g.Label]
		if !ok {
			continue
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("cluster %d scatter: %w", g.Label, err)
		}
		s.GlyphStyle.Color = plotutil.Color(g.Label + 1)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(3)
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("Cluster %d", g.Label), s)
	}
	p.Legend.Top = true

	return p, nil
}

// PlotTitle returns the two-line plot heading
func PlotTitle(report *model.Report) string {
	date := report.ReferenceDate
	if d, err := model.ParseDate(report.ReferenceDate); err == nil {
		date = d.Format("01/02/2006")
	}
	title := fmt.Sprintf("COVID Response Stringency vs. Freedom of Expression (%s)", date)

	if report.Trend == nil {
		return title
	}
	return fmt.Sprintf("%s\nLinear Regression: y = %sx + %s",
		title, round2(report.Trend.Slope), round2(report.Trend.Intercept))
}

func round2(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
