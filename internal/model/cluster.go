package model

import (
	"encoding/json"
	"math"
)

// ClusterGroup is one labeled group of a partition
type ClusterGroup struct {
	Label     int           `json:"label"`
	Countries []CountryCode `json:"countries"` // Sorted
}

// ClusterAssignment partitions the feature-complete countries into K
// non-empty groups. Each country belongs to exactly one group.
type ClusterAssignment struct {
	Groups     []ClusterGroup `json:"groups"` // Index == Label
	Inertia    float64        `json:"inertia"`
	Iterations int            `json:"iterations"`
	Converged  bool           `json:"converged"`
}

// K returns the number of groups
func (a ClusterAssignment) K() int {
	return len(a.Groups)
}

// LabelOf returns a lookup from country to cluster label
func (a ClusterAssignment) LabelOf() map[CountryCode]int {
	out := make(map[CountryCode]int)
	for _, g := range a.Groups {
		for _, c := range g.Countries {
			out[c] = g.Label
		}
	}
	return out
}

// Countries returns every clustered country, group by group
func (a ClusterAssignment) Countries() []CountryCode {
	var out []CountryCode
	for _, g := range a.Groups {
		out = append(out, g.Countries...)
	}
	return out
}

// Mean is an average with its sample size. Count == 0 marks a missing
// value; it is never reported as zero.
type Mean struct {
	Value float64
	Count int
}

// Missing reports whether no values contributed to the mean
func (m Mean) Missing() bool {
	return m.Count == 0
}

// Rounded returns the mean rounded to 4 decimal places for display
func (m Mean) Rounded() Mean {
	if m.Missing() {
		return m
	}
	return Mean{Value: Round4(m.Value), Count: m.Count}
}

// MarshalJSON renders a missing mean as a null value
func (m Mean) MarshalJSON() ([]byte, error) {
	type wire struct {
		Value *float64 `json:"value"`
		Count int      `json:"count"`
	}
	w := wire{Count: m.Count}
	if !m.Missing() {
		v := m.Value
		w.Value = &v
	}
	return json.Marshal(w)
}

// Round4 rounds to 4 decimal places
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// ClusterSummary holds the derived statistics of one cluster
type ClusterSummary struct {
	Label     int           `json:"label"`
	Countries []CountryCode `json:"countries"`
	Freedom   Mean          `json:"freedom"`
	Reference Mean          `json:"reference"`
	Seasonal  []Mean        `json:"seasonal"` // One per configured season, in order
}

// TrendLine is the OLS fit of reference-date stringency on freedom score
type TrendLine struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	N         int     `json:"n"`
}

// At evaluates the line at x
func (t TrendLine) At(x float64) float64 {
	return t.Slope*x + t.Intercept
}

// TrendPoint is one country's (freedom, stringency) pair used by the fit
type TrendPoint struct {
	Country    CountryCode `json:"country"`
	Cluster    int         `json:"cluster"`
	Freedom    float64     `json:"freedom"`
	Stringency float64     `json:"stringency"`
}
