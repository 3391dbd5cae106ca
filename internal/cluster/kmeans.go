// Package cluster partitions countries by their freedom-of-expression
// feature vectors using k-means.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ppiankov/libertas/internal/model"
	"github.com/ppiankov/libertas/internal/worker"
)

// MinRestarts is the fewest independent k-means runs a clustering uses
const MinRestarts = 10

// Engine runs Lloyd's k-means with k-means++ seeding and several
// independent restarts, keeping the partition with the lowest inertia
type Engine struct {
	restarts      int
	maxIterations int
	tolerance     float64
	seed          uint64
	workers       int
	logger        *slog.Logger
}

// NewEngine creates a clustering engine from config. A restart count
// below MinRestarts is raised to it.
func NewEngine(cfg model.ClusteringConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	restarts := cfg.Restarts
	if restarts < MinRestarts {
		restarts = MinRestarts
	}
	maxIter := cfg.MaxIterations
	if maxIter < 1 {
		maxIter = 1
	}
	return &Engine{
		restarts:      restarts,
		maxIterations: maxIter,
		tolerance:     cfg.Tolerance,
		seed:          cfg.Seed,
		workers:       cfg.Workers,
		logger:        logger,
	}
}

// Cluster partitions features into exactly k non-empty groups.
// The result is deterministic for a fixed seed regardless of worker count.
func (e *Engine) Cluster(ctx context.Context, features model.Features, k int) (model.ClusterAssignment, error) {
	if len(features) == 0 {
		return model.ClusterAssignment{}, fmt.Errorf("%w: no feature-complete countries to cluster", model.ErrInsufficientData)
	}
	if k < 1 {
		return model.ClusterAssignment{}, fmt.Errorf("%w: cluster count %d must be at least 1", model.ErrInsufficientData, k)
	}

	codes := make([]model.CountryCode, 0, len(features))
	for c := range features {
		codes = append(codes, c)
	}
	slices.Sort(codes)

	points := make([][]float64, len(codes))
	for i, c := range codes {
		v := features[c]
		points[i] = v[:]
	}

	if distinct := countDistinct(points); distinct < k {
		return model.ClusterAssignment{}, fmt.Errorf("%w: %d clusters requested but only %d distinct feature vectors",
			model.ErrInsufficientData, k, distinct)
	}

	tol := e.tolerance * meanVariance(points)

	jobs := make([]worker.Job, e.restarts)
	for r := range jobs {
		jobs[r] = &restartJob{
			index:   r,
			points:  points,
			k:       k,
			maxIter: e.maxIterations,
			tol:     tol,
			rng:     rand.New(rand.NewPCG(e.seed, uint64(r))),
		}
	}

	var best *restartResult
	for _, res := range worker.Run(ctx, e.workers, jobs) {
		rr := res.(*restartResult)
		if rr.err != nil {
			return model.ClusterAssignment{}, rr.err
		}
		if best == nil || rr.inertia < best.inertia || (rr.inertia == best.inertia && rr.index < best.index) {
			best = rr
		}
	}
	if err := ctx.Err(); err != nil {
		return model.ClusterAssignment{}, err
	}
	if best == nil {
		return model.ClusterAssignment{}, fmt.Errorf("clustering produced no result")
	}

	e.logger.Debug("k-means complete",
		"k", k,
		"points", len(points),
		"restarts", e.restarts,
		"best_restart", best.index,
		"inertia", best.inertia,
		"iterations", best.iterations,
		"converged", best.converged)

	return model.ClusterAssignment{
		Groups:     relabel(codes, best.labels, k),
		Inertia:    best.inertia,
		Iterations: best.iterations,
		Converged:  best.converged,
	}, nil
}

// relabel orders groups by their smallest member. codes is sorted, so the
// first index seen for a raw label is that group's smallest member.
func relabel(codes []model.CountryCode, labels []int, k int) []model.ClusterGroup {
	order := make([]int, 0, k)
	mapped := make(map[int]int, k)
	for _, raw := range labels {
		if _, ok := mapped[raw]; !ok {
			mapped[raw] = len(order)
			order = append(order, raw)
		}
	}

	groups := make([]model.ClusterGroup, len(order))
	for i := range groups {
		groups[i].Label = i
	}
	for i, raw := range labels {
		g := mapped[raw]
		groups[g].Countries = append(groups[g].Countries, codes[i])
	}
	return groups
}

func countDistinct(points [][]float64) int {
	seen := make(map[model.FeatureVector]struct{}, len(points))
	for _, p := range points {
		var v model.FeatureVector
		copy(v[:], p)
		seen[v] = struct{}{}
	}
	return len(seen)
}

// meanVariance averages the population variance of each feature
func meanVariance(points [][]float64) float64 {
	dims := len(points[0])
	col := make([]float64, len(points))
	var sum float64
	for d := 0; d < dims; d++ {
		for i, p := range points {
			col[i] = p[d]
		}
		_, v := stat.PopMeanVariance(col, nil)
		sum += v
	}
	return sum / float64(dims)
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

// nearest returns the closest centroid, ties resolved to the lowest index
func nearest(p []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}
