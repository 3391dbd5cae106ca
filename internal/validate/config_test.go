package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/libertas/internal/model"
)

func TestConfig_DefaultIsValid(t *testing.T) {
	if err := Config(model.DefaultConfig()); err != nil {
		t.Fatalf("Expected default config to be valid, got %v", err)
	}
}

func TestConfig_Nil(t *testing.T) {
	err := Config(nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestConfig_Rules(t *testing.T) {
	tests := []struct {
		mutate  func(*model.Config)
		wantMsg string
		desc    string
	}{
		{
			mutate:  func(c *model.Config) { c.Clustering.K = 0 },
			wantMsg: "Clustering.K must be at least 1",
			desc:    "Zero clusters",
		},
		{
			mutate:  func(c *model.Config) { c.Clustering.Restarts = 3 },
			wantMsg: "Clustering.Restarts must be at least 10",
			desc:    "Too few restarts",
		},
		{
			mutate:  func(c *model.Config) { c.Data.FreedomPath = "" },
			wantMsg: "Data.FreedomPath is required",
			desc:    "Missing freedom path",
		},
		{
			mutate:  func(c *model.Config) { c.Analysis.ReferenceDate = "31/12/2020" },
			wantMsg: "Analysis.ReferenceDate must be a date",
			desc:    "Reference date in wrong layout",
		},
		{
			mutate:  func(c *model.Config) { c.Analysis.ReportingYear = 0 },
			wantMsg: "Analysis.ReportingYear must be greater than 0",
			desc:    "Zero reporting year",
		},
		{
			mutate:  func(c *model.Config) { c.Analysis.Seasons = nil },
			wantMsg: "Analysis.Seasons must be at least 1",
			desc:    "No seasons",
		},
		{
			mutate: func(c *model.Config) {
				c.Analysis.Seasons[0].Start = "2020-07-01"
			},
			wantMsg: `season "spring" must start before it ends`,
			desc:    "Inverted season window",
		},
		{
			mutate: func(c *model.Config) {
				c.Analysis.Seasons[1].Name = "spring"
			},
			wantMsg: `season "spring" is defined twice`,
			desc:    "Duplicate season name",
		},
		{
			mutate: func(c *model.Config) {
				c.Analysis.Seasons[2].End = "2020-13-01"
			},
			wantMsg: "Analysis.Seasons[2].End must be a date",
			desc:    "Invalid season date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			cfg := model.DefaultConfig()
			tt.mutate(cfg)

			err := Config(cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected error to contain %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestConfig_ReportsAllProblems(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Clustering.K = 0
	cfg.Clustering.Workers = 0

	err := Config(cfg)
	if err == nil {
		t.Fatal("Expected an error")
	}
	for _, want := range []string{"Clustering.K", "Clustering.Workers"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %s, got %q", want, err.Error())
		}
	}
}
