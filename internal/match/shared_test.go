package match

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/libertas/internal/model"
)

func fr(country string, year int) model.FreedomRecord {
	return model.FreedomRecord{Country: model.CountryCode(country), Year: year}
}

func sr(country string) model.StringencyRecord {
	return model.StringencyRecord{Country: model.CountryCode(country)}
}

func TestSharedCountries(t *testing.T) {
	freedom := []model.FreedomRecord{
		fr("USA", 2017), fr("ALB", 2017), fr("FRA", 2016), fr("ALB", 2016), fr("DZA", 2017),
	}
	stringency := []model.StringencyRecord{
		sr("FRA"), sr("USA"), sr("USA"), sr("ALB"), sr("NZL"),
	}

	got := SharedCountries(freedom, stringency, 2017)
	assert.Equal(t, []model.CountryCode{"ALB", "USA"}, got)
}

func TestSharedCountries_YearFilter(t *testing.T) {
	freedom := []model.FreedomRecord{fr("FRA", 2016)}
	stringency := []model.StringencyRecord{sr("FRA")}

	assert.Empty(t, SharedCountries(freedom, stringency, 2017))
	assert.Equal(t, []model.CountryCode{"FRA"}, SharedCountries(freedom, stringency, 2016))
}

func TestSharedCountries_EmptyInputs(t *testing.T) {
	tests := []struct {
		freedom    []model.FreedomRecord
		stringency []model.StringencyRecord
		desc       string
	}{
		{nil, []model.StringencyRecord{sr("A")}, "Empty freedom table"},
		{[]model.FreedomRecord{fr("A", 2017)}, nil, "Empty stringency table"},
		{nil, nil, "Both empty"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := SharedCountries(tt.freedom, tt.stringency, 2017)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestSharedCountries_OrderIndependentAndIdempotent(t *testing.T) {
	var freedom []model.FreedomRecord
	var stringency []model.StringencyRecord
	for _, c := range []string{"ZWE", "ARG", "KEN", "BRA", "CHN", "IND", "JPN"} {
		freedom = append(freedom, fr(c, 2017))
	}
	for _, c := range []string{"KEN", "JPN", "ARG", "ZWE", "GBR", "KEN"} {
		stringency = append(stringency, sr(c))
	}

	want := []model.CountryCode{"ARG", "JPN", "KEN", "ZWE"}
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(freedom), func(a, b int) { freedom[a], freedom[b] = freedom[b], freedom[a] })
		rng.Shuffle(len(stringency), func(a, b int) { stringency[a], stringency[b] = stringency[b], stringency[a] })

		first := SharedCountries(freedom, stringency, 2017)
		assert.Equal(t, want, first)
		assert.Equal(t, first, SharedCountries(freedom, stringency, 2017))
	}
}

func TestSet(t *testing.T) {
	s := Set([]model.CountryCode{"A", "B", "A"})
	assert.Len(t, s, 2)
	_, ok := s["B"]
	assert.True(t, ok)
}
