// Package match derives the country universe shared by both datasets.
package match

import (
	"slices"

	"github.com/ppiankov/libertas/internal/model"
)

// SharedCountries returns the countries present in the freedom table for
// year and anywhere in the stringency table, sorted lexicographically.
// Either side being empty yields an empty result.
func SharedCountries(freedom []model.FreedomRecord, stringency []model.StringencyRecord, year int) []model.CountryCode {
	inFreedom := make(map[model.CountryCode]struct{})
	for _, r := range freedom {
		if r.Year == year {
			inFreedom[r.Country] = struct{}{}
		}
	}

	seen := make(map[model.CountryCode]struct{})
	shared := []model.CountryCode{}
	for _, r := range stringency {
		if _, ok := inFreedom[r.Country]; !ok {
			continue
		}
		if _, dup := seen[r.Country]; dup {
			continue
		}
		seen[r.Country] = struct{}{}
		shared = append(shared, r.Country)
	}

	slices.Sort(shared)
	return shared
}

// Set converts a country list to a membership set
func Set(countries []model.CountryCode) map[model.CountryCode]struct{} {
	out := make(map[model.CountryCode]struct{}, len(countries))
	for _, c := range countries {
		out[c] = struct{}{}
	}
	return out
}
