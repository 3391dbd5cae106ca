package extract

import (
	"math"
	"sort"
	"strconv"

	"github.com/ppiankov/libertas/internal/match"
	"github.com/ppiankov/libertas/internal/model"
)

// FeatureExtractor builds clustering feature vectors from freedom rows
type FeatureExtractor struct {
	columns [model.FeatureDims]string
}

// NewFeatureExtractor creates a new feature extractor over the declared sub-indicators
func NewFeatureExtractor() *FeatureExtractor {
	return &FeatureExtractor{
		columns: model.SubIndicators,
	}
}

// Extract returns the feature vector of every shared country whose year row
// has all sub-indicators numeric. A country with any blank or non-numeric
// cell is left out entirely and reported in the exclusion list instead;
// this is expected for sparse national reporting and is not an error.
// When a country has several rows for year, the last one is used.
func (e *FeatureExtractor) Extract(freedom []model.FreedomRecord, shared []model.CountryCode, year int) (model.Features, []model.Exclusion) {
	wanted := match.Set(shared)

	rows := model.LatestFreedom(freedom, year)
	for country := range rows {
		if _, ok := wanted[country]; !ok {
			delete(rows, country)
		}
	}

	features := make(model.Features, len(rows))
	var excluded []model.Exclusion
	for country, r := range rows {
		vec, bad, ok := e.parse(r)
		if !ok {
			excluded = append(excluded, model.Exclusion{
				Country: country,
				Column:  e.columns[bad],
				Value:   r.SubIndicators[bad],
			})
			continue
		}
		features[country] = vec
	}

	sort.Slice(excluded, func(i, j int) bool { return excluded[i].Country < excluded[j].Country })
	return features, excluded
}

// parse validates every sub-indicator before building the vector.
// On failure it returns the index of the first offending column.
func (e *FeatureExtractor) parse(r model.FreedomRecord) (model.FeatureVector, int, bool) {
	var vec model.FeatureVector
	for i, raw := range r.SubIndicators {
		if raw == "" {
			return model.FeatureVector{}, i, false
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return model.FeatureVector{}, i, false
		}
		vec[i] = v
	}
	return vec, 0, true
}
