package cluster

import (
	"context"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/ppiankov/libertas/internal/worker"
)

// restartJob is one independent k-means run
type restartJob struct {
	index   int
	points  [][]float64
	k       int
	maxIter int
	tol     float64
	rng     *rand.Rand
}

// restartResult is the outcome of one restart
type restartResult struct {
	index      int
	labels     []int
	inertia    float64
	iterations int
	converged  bool
	err        error
}

func (r *restartResult) GetError() error {
	return r.err
}

// Execute runs seeding and Lloyd iterations until the centroid shift
// falls within tolerance or the iteration cap is reached
func (j *restartJob) Execute(ctx context.Context) worker.Result {
	res := &restartResult{index: j.index}

	centroids := j.seed()
	labels := make([]int, len(j.points))

	for res.iterations < j.maxIter {
		if err := ctx.Err(); err != nil {
			res.err = err
			return res
		}
		res.iterations++

		j.assign(centroids, labels)
		next := j.centroids(labels)

		var shift float64
		for c := range centroids {
			shift += sqDist(centroids[c], next[c])
		}
		centroids = next

		if shift <= j.tol {
			res.converged = true
			break
		}
	}

	// Final assignment against the last centroids
	j.assign(centroids, labels)
	centroids = j.centroids(labels)

	for i, p := range j.points {
		res.inertia += sqDist(p, centroids[labels[i]])
	}
	res.labels = labels
	return res
}

// seed picks initial centroids with k-means++
func (j *restartJob) seed() [][]float64 {
	n := len(j.points)
	centroids := make([][]float64, 0, j.k)
	centroids = append(centroids, clone(j.points[j.rng.IntN(n)]))

	dist := make([]float64, n)
	for len(centroids) < j.k {
		var total float64
		for i, p := range j.points {
			_, d := nearest(p, centroids)
			dist[i] = d
			total += d
		}

		// total > 0 while fewer distinct centroids than distinct points exist
		target := j.rng.Float64() * total
		pick := n - 1
		var acc float64
		for i, d := range dist {
			acc += d
			if d > 0 && acc > target {
				pick = i
				break
			}
		}
		for dist[pick] == 0 && pick > 0 {
			pick--
		}
		centroids = append(centroids, clone(j.points[pick]))
	}
	return centroids
}

// assign labels every point with its nearest centroid, then repairs
// empty clusters so exactly k groups remain non-empty
func (j *restartJob) assign(centroids [][]float64, labels []int) {
	sizes := make([]int, len(centroids))
	dists := make([]float64, len(j.points))
	for i, p := range j.points {
		labels[i], dists[i] = nearest(p, centroids)
		sizes[labels[i]]++
	}

	for c := range centroids {
		if sizes[c] > 0 {
			continue
		}
		// Relocate the point farthest from its centroid, taken from a
		// cluster that keeps at least one member
		far, farDist := -1, -1.0
		for i := range j.points {
			if sizes[labels[i]] > 1 && dists[i] > farDist {
				far, farDist = i, dists[i]
			}
		}
		if far < 0 {
			continue
		}
		sizes[labels[far]]--
		labels[far] = c
		sizes[c]++
		dists[far] = 0
		centroids[c] = clone(j.points[far])
	}
}

// centroids returns the mean of each labeled group
func (j *restartJob) centroids(labels []int) [][]float64 {
	dims := len(j.points[0])
	sums := make([][]float64, j.k)
	counts := make([]float64, j.k)
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	for i, p := range j.points {
		floats.Add(sums[labels[i]], p)
		counts[labels[i]]++
	}
	for c := range sums {
		if counts[c] > 0 {
			floats.Scale(1/counts[c], sums[c])
		}
	}
	return sums
}

func clone(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}
