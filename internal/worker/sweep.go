package worker

import (
	"context"
	"sort"

	"github.com/ppiankov/libertas/internal/model"
)

// Clusterer defines the interface for partitioning feature vectors
type Clusterer interface {
	Cluster(ctx context.Context, features model.Features, k int) (model.ClusterAssignment, error)
}

// SweepJob clusters the feature set for one k
type SweepJob struct {
	K         int
	Features  model.Features
	Clusterer Clusterer
}

// Execute executes the sweep job
func (j *SweepJob) Execute(ctx context.Context) Result {
	assign, err := j.Clusterer.Cluster(ctx, j.Features, j.K)
	if err != nil {
		return &SweepResult{K: j.K, Error: err}
	}
	return &SweepResult{
		K:          j.K,
		Inertia:    assign.Inertia,
		Iterations: assign.Iterations,
		Converged:  assign.Converged,
		Assignment: &assign,
	}
}

// SweepResult represents the clustering outcome for one k
type SweepResult struct {
	K          int                      `json:"k"`
	Inertia    float64                  `json:"inertia"`
	Iterations int                      `json:"iterations"`
	Converged  bool                     `json:"converged"`
	Assignment *model.ClusterAssignment `json:"assignment,omitempty"`
	Error      error                    `json:"-"`
}

// GetError returns the error from the sweep result
func (r *SweepResult) GetError() error {
	return r.Error
}

// SweepProcessor clusters the same feature set for a range of k concurrently
type SweepProcessor struct {
	clusterer   Clusterer
	concurrency int
}

// NewSweepProcessor creates a new sweep processor
func NewSweepProcessor(clusterer Clusterer, concurrency int) *SweepProcessor {
	return &SweepProcessor{
		clusterer:   clusterer,
		concurrency: concurrency,
	}
}

// Process clusters features once per k in [from, to] and returns the
// results ordered by k. A k that cannot be clustered carries its error;
// the remaining ks are unaffected.
func (s *SweepProcessor) Process(ctx context.Context, features model.Features, from, to int) []*SweepResult {
	if from > to {
		return []*SweepResult{}
	}

	jobs := make([]Job, 0, to-from+1)
	for k := from; k <= to; k++ {
		jobs = append(jobs, &SweepJob{
			K:         k,
			Features:  features,
			Clusterer: s.clusterer,
		})
	}

	results := Run(ctx, s.concurrency, jobs)

	sweep := make([]*SweepResult, len(results))
	for i, result := range results {
		sweep[i] = result.(*SweepResult)
	}
	sort.Slice(sweep, func(i, j int) bool { return sweep[i].K < sweep[j].K })

	return sweep
}
