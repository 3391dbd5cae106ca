package model

import "time"

// CountryCode is an ISO country identifier, the join key across both datasets
type CountryCode string

// DateLayout is the calendar date format used by the stringency dataset and config
const DateLayout = "2006-01-02"

// SubIndicators lists the freedom-of-expression columns used as clustering
// features, in their declared order
var SubIndicators = [FeatureDims]string{
	"pf_expression_killed",
	"pf_expression_jailed",
	"pf_expression_influence",
	"pf_expression_control",
	"pf_expression_cable",
	"pf_expression_newspapers",
	"pf_expression_internet",
}

// FeatureDims is the dimensionality of a FeatureVector
const FeatureDims = 7

// FreedomRecord is one row of the freedom dataset
type FreedomRecord struct {
	Country    CountryCode
	Year       int
	Expression *float64 // Aggregate pf_expression score, nil when blank

	// SubIndicators holds the raw cell text in SubIndicators order.
	// Parsing is deferred to the feature extractor so blank or
	// non-numeric cells only exclude a country, never fail a load.
	SubIndicators [FeatureDims]string

	Line int // 1-based source line, for diagnostics
}

// StringencyRecord is one row of the response dataset
type StringencyRecord struct {
	Country    CountryCode
	Date       time.Time // UTC midnight
	Stringency float64
}

// FeatureVector holds all seven sub-indicator values of a country
type FeatureVector [FeatureDims]float64

// Features maps each feature-complete country to its vector
type Features map[CountryCode]FeatureVector

// Exclusion records why a shared country was left out of the feature set
type Exclusion struct {
	Country CountryCode `json:"country"`
	Column  string      `json:"column"`
	Value   string      `json:"value"`
}

// ParseDate parses a YYYY-MM-DD date into UTC midnight
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// SeasonWindow is a named half-open date interval [Start, End)
type SeasonWindow struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether d falls inside the window
func (w SeasonWindow) Contains(d time.Time) bool {
	return !d.Before(w.Start) && d.Before(w.End)
}

// LatestFreedom returns, per country, the last freedom row of year in
// table order. Every stage reading one row per country and year uses it.
func LatestFreedom(freedom []FreedomRecord, year int) map[CountryCode]FreedomRecord {
	out := make(map[CountryCode]FreedomRecord)
	for _, r := range freedom {
		if r.Year == year {
			out[r.Country] = r
		}
	}
	return out
}
