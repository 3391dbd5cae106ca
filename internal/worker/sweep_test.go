package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/libertas/internal/model"
)

// mockClusterer implements Clusterer
type mockClusterer struct {
	failAbove int
}

func (m *mockClusterer) Cluster(ctx context.Context, features model.Features, k int) (model.ClusterAssignment, error) {
	time.Sleep(5 * time.Millisecond) // Simulate work
	if m.failAbove > 0 && k > m.failAbove {
		return model.ClusterAssignment{}, model.ErrInsufficientData
	}
	groups := make([]model.ClusterGroup, k)
	for i := range groups {
		groups[i].Label = i
	}
	return model.ClusterAssignment{
		Groups:     groups,
		Inertia:    100 / float64(k),
		Iterations: k,
		Converged:  true,
	}, nil
}

func TestSweepProcessor_Process(t *testing.T) {
	processor := NewSweepProcessor(&mockClusterer{}, 3)

	results := processor.Process(context.Background(), model.Features{}, 2, 6)

	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}

	for i, res := range results {
		if res.K != i+2 {
			t.Errorf("result %d: expected k=%d, got %d", i, i+2, res.K)
		}
		if res.Error != nil {
			t.Errorf("unexpected error for k=%d: %v", res.K, res.Error)
		}
		if res.Assignment == nil || res.Assignment.K() != res.K {
			t.Errorf("expected assignment with %d groups", res.K)
		}
	}

	// Inertia of the mock decreases with k
	for i := 1; i < len(results); i++ {
		if results[i].Inertia >= results[i-1].Inertia {
			t.Errorf("expected decreasing inertia at k=%d", results[i].K)
		}
	}
}

func TestSweepProcessor_PartialFailure(t *testing.T) {
	processor := NewSweepProcessor(&mockClusterer{failAbove: 3}, 2)

	results := processor.Process(context.Background(), model.Features{}, 1, 5)

	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}

	for _, res := range results {
		wantErr := res.K > 3
		if gotErr := res.Error != nil; gotErr != wantErr {
			t.Errorf("k=%d: expected error=%v, got %v", res.K, wantErr, res.Error)
		}
		if wantErr && !errors.Is(res.Error, model.ErrInsufficientData) {
			t.Errorf("k=%d: expected ErrInsufficientData, got %v", res.K, res.Error)
		}
		if wantErr && res.Assignment != nil {
			t.Errorf("k=%d: expected nil assignment on error", res.K)
		}
	}
}

func TestSweepProcessor_EmptyRange(t *testing.T) {
	processor := NewSweepProcessor(&mockClusterer{}, 2)

	results := processor.Process(context.Background(), model.Features{}, 5, 2)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}
