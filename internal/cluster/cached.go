package cluster

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/ppiankov/libertas/internal/cache"
	"github.com/ppiankov/libertas/internal/model"
	"github.com/ppiankov/libertas/internal/worker"
)

// Cached memoizes partitions per (feature set, k) so a sweep and a run in
// the same process cluster each k once. Only successful results are stored.
type Cached struct {
	inner worker.Clusterer
	cache cache.Cache
	scope string
}

// NewCached wraps inner. scope must identify every setting that changes
// inner's result; Engine.Fingerprint provides it for an Engine.
func NewCached(inner worker.Clusterer, c cache.Cache, scope string) *Cached {
	return &Cached{inner: inner, cache: c, scope: scope}
}

// Cluster returns the cached partition or computes and stores it.
// Cached assignments are shared and must be treated as read-only.
func (c *Cached) Cluster(ctx context.Context, features model.Features, k int) (model.ClusterAssignment, error) {
	key := cache.Key("cluster", c.scope, strconv.Itoa(k), digest(features))
	if v, ok := c.cache.Get(key); ok {
		if assign, ok := v.(model.ClusterAssignment); ok {
			return assign, nil
		}
	}

	assign, err := c.inner.Cluster(ctx, features, k)
	if err != nil {
		return assign, err
	}
	// A failed store only costs a recomputation later
	_ = c.cache.Set(key, assign, 0)
	return assign, nil
}

// Fingerprint identifies the settings that determine the engine's output.
// Workers is left out: results do not depend on it.
func (e *Engine) Fingerprint() string {
	return strings.Join([]string{
		"restarts=" + strconv.Itoa(e.restarts),
		"max_iter=" + strconv.Itoa(e.maxIterations),
		"tol=" + strconv.FormatFloat(e.tolerance, 'g', -1, 64),
		"seed=" + strconv.FormatUint(e.seed, 10),
	}, ",")
}

// digest renders features in sorted country order with exact float bits
func digest(features model.Features) string {
	codes := make([]model.CountryCode, 0, len(features))
	for c := range features {
		codes = append(codes, c)
	}
	slices.Sort(codes)

	var b strings.Builder
	for _, c := range codes {
		b.WriteString(string(c))
		for _, v := range features[c] {
			b.WriteByte(':')
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		b.WriteByte(';')
	}
	return b.String()
}
