package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy shared by every pipeline stage. Stages wrap these with
// context using fmt.Errorf("...: %w", ...); callers match with errors.Is.
var (
	// ErrSourceUnavailable means an input file is missing, unreadable or lacks a required column
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrInsufficientData means too few usable points for clustering or regression
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDegenerateInput means the regression is undefined (zero variance in x)
	ErrDegenerateInput = errors.New("degenerate input")

	// ErrEmptyAggregate means an average had no contributing records
	ErrEmptyAggregate = errors.New("empty aggregate")
)

// MissingAggregate identifies one (cluster, metric) pair without data
type MissingAggregate struct {
	Cluster int    `json:"cluster"`
	Metric  string `json:"metric"`
}

// EmptyAggregateError lists every (cluster, metric) pair that had no
// contributing records. It matches ErrEmptyAggregate via errors.Is.
type EmptyAggregateError struct {
	Missing []MissingAggregate
}

func (e *EmptyAggregateError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		parts = append(parts, fmt.Sprintf("cluster %d/%s", m.Cluster, m.Metric))
	}
	return fmt.Sprintf("%s: %s", ErrEmptyAggregate, strings.Join(parts, ", "))
}

func (e *EmptyAggregateError) Unwrap() error {
	return ErrEmptyAggregate
}

// MergeEmptyAggregates collects the pairs of every EmptyAggregateError in
// errs into one error. Returns nil when nothing is missing.
func MergeEmptyAggregates(errs ...error) error {
	var merged EmptyAggregateError
	for _, err := range errs {
		var e *EmptyAggregateError
		if errors.As(err, &e) {
			merged.Missing = append(merged.Missing, e.Missing...)
		}
	}
	if len(merged.Missing) == 0 {
		return nil
	}
	return &merged
}
