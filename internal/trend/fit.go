// Package trend fits the linear relationship between freedom score and
// reference-date stringency.
package trend

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ppiankov/libertas/internal/model"
)

// Fit returns the ordinary least squares line of y on x
func Fit(x, y []float64) (model.TrendLine, error) {
	if len(x) != len(y) {
		return model.TrendLine{}, fmt.Errorf("trend input length mismatch: %d x values, %d y values", len(x), len(y))
	}
	if len(x) < 2 {
		return model.TrendLine{}, fmt.Errorf("%w: trend needs at least 2 points, got %d", model.ErrInsufficientData, len(x))
	}
	if floats.Max(x) == floats.Min(x) {
		return model.TrendLine{}, fmt.Errorf("%w: all %d freedom scores equal %g", model.ErrDegenerateInput, len(x), x[0])
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)

	return model.TrendLine{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  stat.RSquared(x, y, nil, intercept, slope),
		N:         len(x),
	}, nil
}

// Points pairs each clustered country's reporting-year freedom score with
// its stringency on the reference date. The freedom score comes from the
// country's last row for the year. Countries missing either value are
// returned in skipped.
func Points(assign model.ClusterAssignment, freedom []model.FreedomRecord, stringency []model.StringencyRecord, year int, date time.Time) (points []model.TrendPoint, skipped []model.CountryCode) {
	scores := make(map[model.CountryCode]float64)
	for c, r := range model.LatestFreedom(freedom, year) {
		if r.Expression != nil {
			scores[c] = *r.Expression
		}
	}

	final := make(map[model.CountryCode]float64)
	for _, r := range stringency {
		if r.Date.Equal(date) {
			final[r.Country] = r.Stringency
		}
	}

	for _, g := range assign.Groups {
		for _, c := range g.Countries {
			x, okX := scores[c]
			y, okY := final[c]
			if !okX || !okY {
				skipped = append(skipped, c)
				continue
			}
			points = append(points, model.TrendPoint{Country: c, Cluster: g.Label, Freedom: x, Stringency: y})
		}
	}
	return points, skipped
}

// XY splits points into the regression inputs
func XY(points []model.TrendPoint) (x, y []float64) {
	x = make([]float64, len(points))
	y = make([]float64, len(points))
	for i, p := range points {
		x[i] = p.Freedom
		y[i] = p.Stringency
	}
	return x, y
}
