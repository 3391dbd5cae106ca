package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/libertas/internal/cache"
	"github.com/ppiankov/libertas/internal/model"
)

// Tables holds both parsed source tables of a run
type Tables struct {
	Freedom    []model.FreedomRecord
	Stringency []model.StringencyRecord
}

// Loader reads the source tables, memoizing parsed results per file
// version when a cache is supplied. Cached slices are shared and must be
// treated as read-only.
type Loader struct {
	cache  cache.Cache // nil disables memoization
	logger *slog.Logger
}

// NewLoader creates a loader. c may be nil.
func NewLoader(c cache.Cache, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{cache: c, logger: logger}
}

// Load reads both tables. The two files are parsed concurrently; the first
// failure cancels the other read's result and is returned.
func (l *Loader) Load(ctx context.Context, freedomPath, stringencyPath string) (*Tables, error) {
	var tables Tables

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := loadCached(ctx, l, "freedom", freedomPath, ReadFreedom)
		tables.Freedom = recs
		return err
	})
	g.Go(func() error {
		recs, err := loadCached(ctx, l, "stringency", stringencyPath, ReadStringency)
		tables.Stringency = recs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &tables, nil
}

// loadCached reads path with read unless a parse of the same file version
// is cached
func loadCached[T any](ctx context.Context, l *Loader, kind, path string, read func(string) ([]T, error)) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrSourceUnavailable, path, err)
	}

	key := cache.Key(kind, path, strconv.FormatInt(info.Size(), 10), strconv.FormatInt(info.ModTime().UnixNano(), 10))
	if l.cache != nil {
		if v, ok := l.cache.Get(key); ok {
			if recs, ok := v.([]T); ok {
				l.logger.Debug("Using cached table", slog.String("kind", kind), slog.String("path", path), slog.Int("rows", len(recs)))
				return recs, nil
			}
		}
	}

	recs, err := read(path)
	if err != nil {
		return nil, err
	}
	l.logger.Info("Loaded table", slog.String("kind", kind), slog.String("path", path), slog.Int("rows", len(recs)))

	if l.cache != nil {
		if err := l.cache.Set(key, recs, 0); err != nil {
			l.logger.Warn("Failed to cache table", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	return recs, nil
}
