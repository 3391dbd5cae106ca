package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gauges and counters recorded during a run
type Metrics struct {
	StageDuration   *prometheus.GaugeVec
	RowsRead        *prometheus.GaugeVec
	Countries       *prometheus.GaugeVec
	ClusterSize     *prometheus.GaugeVec
	Inertia         prometheus.Gauge
	Iterations      prometheus.Gauge
	EmptyAggregates prometheus.Counter
	TrendSlope      prometheus.Gauge
	TrendRSquared   prometheus.Gauge
}

// NewMetrics creates the run metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ServiceName,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage in the last run.",
		}, []string{"stage"}),
		RowsRead: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ServiceName,
			Name:      "rows_read",
			Help:      "Records loaded per source table.",
		}, []string{"table"}),
		Countries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ServiceName,
			Name:      "countries",
			Help:      "Countries per pipeline population (shared, clustered, excluded, trend).",
		}, []string{"population"}),
		ClusterSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ServiceName,
			Name:      "cluster_size",
			Help:      "Member count of each cluster.",
		}, []string{"cluster"}),
		Inertia: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ServiceName,
			Name:      "kmeans_inertia",
			Help:      "Within-cluster sum of squares of the chosen partition.",
		}),
		Iterations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ServiceName,
			Name:      "kmeans_iterations",
			Help:      "Lloyd iterations of the chosen restart.",
		}),
		EmptyAggregates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ServiceName,
			Name:      "empty_aggregates_total",
			Help:      "Cluster and metric pairs without contributing records.",
		}),
		TrendSlope: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ServiceName,
			Name:      "trend_slope",
			Help:      "Slope of stringency on freedom score.",
		}),
		TrendRSquared: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ServiceName,
			Name:      "trend_r_squared",
			Help:      "Coefficient of determination of the trend fit.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.StageDuration, m.RowsRead, m.Countries, m.ClusterSize,
		m.Inertia, m.Iterations, m.EmptyAggregates, m.TrendSlope, m.TrendRSquared,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
