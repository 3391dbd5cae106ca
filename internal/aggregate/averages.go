// Package aggregate computes per-cluster averages of the freedom score and
// the stringency series.
//
// Every function returns a complete map with one entry per cluster label.
// A (cluster, metric) pair without contributing records holds a missing
// Mean (Count == 0) and is listed in the *model.EmptyAggregateError
// returned alongside the map; the caller chooses whether that is fatal.
package aggregate

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ppiankov/libertas/internal/model"
)

// Metric names used in missing-aggregate reports
const (
	MetricFreedom   = "freedom"
	MetricReference = "reference"
)

// SeasonMetric names the metric of a seasonal window
func SeasonMetric(name string) string {
	return "season:" + name
}

// FreedomAverages returns the mean pf_expression per cluster over the
// reporting year. Each country contributes its last row for the year;
// an absent score on that row does not contribute.
func FreedomAverages(assign model.ClusterAssignment, freedom []model.FreedomRecord, year int) (map[int]model.Mean, error) {
	values := make([][]float64, assign.K())

	latest := model.LatestFreedom(freedom, year)
	for _, g := range assign.Groups {
		for _, c := range g.Countries {
			if r, ok := latest[c]; ok && r.Expression != nil {
				values[g.Label] = append(values[g.Label], *r.Expression)
			}
		}
	}

	return collect(values, MetricFreedom)
}

// ReferenceDateAverages returns the mean stringency per cluster on exactly date
func ReferenceDateAverages(assign model.ClusterAssignment, stringency []model.StringencyRecord, date time.Time) (map[int]model.Mean, error) {
	labels := assign.LabelOf()
	values := make([][]float64, assign.K())

	for _, r := range stringency {
		if !r.Date.Equal(date) {
			continue
		}
		if label, ok := labels[r.Country]; ok {
			values[label] = append(values[label], r.Stringency)
		}
	}

	return collect(values, MetricReference)
}

// SeasonalAverages returns, per cluster, one mean per window in window
// order. Windows are half-open; a record inside two overlapping windows
// counts in both.
func SeasonalAverages(assign model.ClusterAssignment, stringency []model.StringencyRecord, windows []model.SeasonWindow) (map[int][]model.Mean, error) {
	labels := assign.LabelOf()
	k := assign.K()

	values := make([][][]float64, len(windows))
	for w := range windows {
		values[w] = make([][]float64, k)
	}

	for _, r := range stringency {
		label, ok := labels[r.Country]
		if !ok {
			continue
		}
		for w, win := range windows {
			if win.Contains(r.Date) {
				values[w][label] = append(values[w][label], r.Stringency)
			}
		}
	}

	out := make(map[int][]model.Mean, k)
	for label := 0; label < k; label++ {
		out[label] = make([]model.Mean, len(windows))
	}

	var errs []error
	for w, win := range windows {
		means, err := collect(values[w], SeasonMetric(win.Name))
		errs = append(errs, err)
		for label, m := range means {
			out[label][w] = m
		}
	}

	return out, model.MergeEmptyAggregates(errs...)
}

func collect(values [][]float64, metric string) (map[int]model.Mean, error) {
	out := make(map[int]model.Mean, len(values))
	var missing []model.MissingAggregate

	for label, vals := range values {
		if len(vals) == 0 {
			out[label] = model.Mean{}
			missing = append(missing, model.MissingAggregate{Cluster: label, Metric: metric})
			continue
		}
		out[label] = model.Mean{Value: stat.Mean(vals, nil), Count: len(vals)}
	}

	if len(missing) > 0 {
		return out, &model.EmptyAggregateError{Missing: missing}
	}
	return out, nil
}

// Signals converts missing aggregates into one warning signal per pair
func Signals(err error) []model.Signal {
	merged := model.MergeEmptyAggregates(err)
	if merged == nil {
		return nil
	}

	var signals []model.Signal
	for _, m := range merged.(*model.EmptyAggregateError).Missing {
		signals = append(signals, model.Signal{
			Type:        model.SignalEmptyAggregate,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Cluster %d has no data for %s", m.Cluster, m.Metric),
			Data: map[string]interface{}{
				"cluster": m.Cluster,
				"metric":  m.Metric,
			},
		})
	}
	return signals
}
