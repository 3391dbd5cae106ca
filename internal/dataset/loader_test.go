package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/libertas/internal/cache"
	"github.com/ppiankov/libertas/internal/model"
)

func TestLoader_Load(t *testing.T) {
	freedom := writeFile(t, "freedom.csv", freedomHeader+"2017,ALB,Albania,8.5,10,10,5,5.5,10,10,10\n")
	stringency := writeFile(t, "stringency.csv", "Code,Date,stringency_index\nALB,2020-12-31,80\n")

	loader := NewLoader(nil, nil)
	tables, err := loader.Load(context.Background(), freedom, stringency)
	require.NoError(t, err)
	assert.Len(t, tables.Freedom, 1)
	assert.Len(t, tables.Stringency, 1)
}

func TestLoader_MissingSource(t *testing.T) {
	stringency := writeFile(t, "stringency.csv", "Code,Date,stringency_index\nALB,2020-12-31,80\n")

	loader := NewLoader(nil, nil)
	tables, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), stringency)
	assert.Nil(t, tables)
	assert.ErrorIs(t, err, model.ErrSourceUnavailable)
}

func TestLoader_UsesCache(t *testing.T) {
	freedom := writeFile(t, "freedom.csv", freedomHeader+"2017,ALB,Albania,8.5,10,10,5,5.5,10,10,10\n")
	stringency := writeFile(t, "stringency.csv", "Code,Date,stringency_index\nALB,2020-12-31,80\n")

	mem := cache.NewMemoryCache(time.Minute, time.Minute)
	loader := NewLoader(mem, nil)

	first, err := loader.Load(context.Background(), freedom, stringency)
	require.NoError(t, err)
	assert.Equal(t, 2, mem.Len())

	second, err := loader.Load(context.Background(), freedom, stringency)
	require.NoError(t, err)
	assert.Same(t, &first.Freedom[0], &second.Freedom[0], "second load should reuse the cached slice")

	// A rewritten file is a new version and must be parsed again
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(stringency, []byte("Code,Date,stringency_index\nALB,2020-12-31,81\nDZA,2020-12-31,5\n"), 0o644))
	require.NoError(t, os.Chtimes(stringency, later, later))

	third, err := loader.Load(context.Background(), freedom, stringency)
	require.NoError(t, err)
	assert.Len(t, third.Stringency, 2)
}

func TestLoader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(nil, nil).Load(ctx, "a.csv", "b.csv")
	assert.ErrorIs(t, err, context.Canceled)
}
