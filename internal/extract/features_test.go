package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/libertas/internal/model"
)

func row(country string, year int, cells ...string) model.FreedomRecord {
	r := model.FreedomRecord{Country: model.CountryCode(country), Year: year}
	copy(r.SubIndicators[:], cells)
	return r
}

func full(v string) []string {
	out := make([]string, model.FeatureDims)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestFeatureExtractor_CompleteRows(t *testing.T) {
	e := NewFeatureExtractor()

	freedom := []model.FreedomRecord{
		row("A", 2017, full("5.0")...),
		row("B", 2017, "1", "2", "3", "4", "5", "6", "7"),
		row("A", 2016, full("9.0")...),
	}

	features, excluded := e.Extract(freedom, []model.CountryCode{"A", "B"}, 2017)
	require.Len(t, features, 2)
	assert.Empty(t, excluded)

	assert.Equal(t, model.FeatureVector{5, 5, 5, 5, 5, 5, 5}, features["A"])
	assert.Equal(t, model.FeatureVector{1, 2, 3, 4, 5, 6, 7}, features["B"])
}

func TestFeatureExtractor_BlankSubIndicatorExcludesCountry(t *testing.T) {
	e := NewFeatureExtractor()

	cells := full("5.0")
	cells[4] = ""
	freedom := []model.FreedomRecord{
		row("A", 2017, cells...),
		row("B", 2017, full("1.0")...),
	}

	features, excluded := e.Extract(freedom, []model.CountryCode{"A", "B"}, 2017)

	_, present := features["A"]
	assert.False(t, present, "country with a blank sub-indicator must be absent")
	assert.Len(t, features, 1)
	require.Len(t, excluded, 1)
	assert.Equal(t, model.Exclusion{Country: "A", Column: "pf_expression_cable", Value: ""}, excluded[0])
}

func TestFeatureExtractor_NonNumericSubIndicator(t *testing.T) {
	e := NewFeatureExtractor()

	cells := full("2")
	cells[6] = "n/a"
	features, excluded := e.Extract([]model.FreedomRecord{row("C", 2017, cells...)}, []model.CountryCode{"C"}, 2017)

	assert.Empty(t, features)
	require.Len(t, excluded, 1)
	assert.Equal(t, "pf_expression_internet", excluded[0].Column)
	assert.Equal(t, "n/a", excluded[0].Value)
}

func TestFeatureExtractor_NaNIsNotNumeric(t *testing.T) {
	e := NewFeatureExtractor()

	cells := full("2")
	cells[1] = "NaN"
	_, excluded := e.Extract([]model.FreedomRecord{row("C", 2017, cells...)}, []model.CountryCode{"C"}, 2017)

	require.Len(t, excluded, 1)
	assert.Equal(t, "pf_expression_jailed", excluded[0].Column)
}

func TestFeatureExtractor_OnlySharedCountriesAndYear(t *testing.T) {
	e := NewFeatureExtractor()

	freedom := []model.FreedomRecord{
		row("A", 2017, full("1")...),
		row("X", 2017, full("1")...), // not shared
		row("B", 2015, full("1")...), // wrong year
	}

	features, excluded := e.Extract(freedom, []model.CountryCode{"A", "B"}, 2017)
	assert.Equal(t, model.Features{"A": {1, 1, 1, 1, 1, 1, 1}}, features)
	assert.Empty(t, excluded, "countries absent for the year are not exclusions")
}

func TestFeatureExtractor_NeverPartial(t *testing.T) {
	e := NewFeatureExtractor()

	var freedom []model.FreedomRecord
	var shared []model.CountryCode
	for i := 0; i < model.FeatureDims; i++ {
		cells := full("3")
		cells[i] = ""
		code := string(rune('A' + i))
		freedom = append(freedom, row(code, 2017, cells...))
		shared = append(shared, model.CountryCode(code))
	}

	features, excluded := e.Extract(freedom, shared, 2017)
	assert.Empty(t, features)
	require.Len(t, excluded, model.FeatureDims)
	for i, ex := range excluded {
		assert.Equal(t, model.SubIndicators[i], ex.Column)
	}
}

func TestFeatureExtractor_LastDuplicateRowWins(t *testing.T) {
	e := NewFeatureExtractor()

	incomplete := full("4")
	incomplete[0] = ""
	freedom := []model.FreedomRecord{
		row("A", 2017, full("4")...),
		row("A", 2017, incomplete...),
		row("B", 2017, incomplete...),
		row("B", 2017, full("2")...),
	}

	features, excluded := e.Extract(freedom, []model.CountryCode{"A", "B"}, 2017)
	assert.Equal(t, model.Features{"B": {2, 2, 2, 2, 2, 2, 2}}, features)
	require.Len(t, excluded, 1)
	assert.Equal(t, model.CountryCode("A"), excluded[0].Country)
}
