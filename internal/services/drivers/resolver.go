package drivers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/models"
)

// Strategy is one step of the resolution fallback chain.
// Locate returns a soft error when it cannot produce the executable; the
// resolver records it and moves on to the next strategy.
type Strategy interface {
	Source() models.Source
	Locate(ctx context.Context, name string) (models.Executable, error)
}

// Resolver runs the strategy chain for a named executable, memoised by a shared Cache
type Resolver struct {
	strategies []Strategy
	cache      *Cache
	logger     arbor.ILogger
}

// NewResolver creates a resolver that runs strategies in the given order
func NewResolver(cache *Cache, logger arbor.ILogger, strategies ...Strategy) *Resolver {
	if cache == nil {
		cache = NewCache(nil)
	}
	return &Resolver{
		strategies: strategies,
		cache:      cache,
		logger:     logger,
	}
}

// Resolve locates the executable called name. Concurrent calls for the same
// name share one run of the chain.
func (r *Resolver) Resolve(ctx context.Context, name string) (models.Executable, error) {
	if name == "" {
		return models.Executable{}, fmt.Errorf("executable name is required")
	}
	return r.cache.Resolve(ctx, name, func(ctx context.Context) (models.Executable, error) {
		return r.runChain(ctx, name)
	})
}

func (r *Resolver) runChain(ctx context.Context, name string) (models.Executable, error) {
	startTime := time.Now()
	resErr := &ResolutionError{Name: name}

	for _, strategy := range r.strategies {
		if err := ctx.Err(); err != nil {
			resErr.Attempts = append(resErr.Attempts, Attempt{Source: strategy.Source(), Reason: err})
			break
		}

		exe, err := strategy.Locate(ctx, name)
		if err == nil {
			if exe.ResolvedAt.IsZero() {
				exe.ResolvedAt = time.Now()
			}
			r.logger.Info().
				Str("executable", name).
				Str("source", string(exe.Source)).
				Str("path", exe.Path).
				Dur("duration", time.Since(startTime)).
				Msg("Executable resolved")
			return exe, nil
		}

		resErr.Attempts = append(resErr.Attempts, Attempt{Source: strategy.Source(), Reason: err})

		event := r.logger.Warn()
		if errors.Is(err, ErrSkipped) || errors.Is(err, ErrNotFound) {
			event = r.logger.Debug()
		}
		event.
			Str("executable", name).
			Str("source", string(strategy.Source())).
			Err(err).
			Msg("Resolution strategy failed, falling through")
	}

	r.logger.Error().
		Str("executable", name).
		Int("strategies_tried", len(resErr.Attempts)).
		Msg("No resolution strategy produced the executable")

	return models.Executable{}, resErr
}

// PrepareResult is the outcome of preparing one executable
type PrepareResult struct {
	Name       string
	Executable models.Executable
	Err        error
}

// Prepare creates the local and cache directories and resolves every name.
// Failures are reported per name; Prepare itself only fails if the
// directories cannot be created.
func (r *Resolver) Prepare(ctx context.Context, dirs []string, names ...string) ([]PrepareResult, error) {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create driver directory %s: %w", dir, err)
		}
	}

	results := make([]PrepareResult, 0, len(names))
	for _, name := range names {
		exe, err := r.Resolve(ctx, name)
		results = append(results, PrepareResult{Name: name, Executable: exe, Err: err})
	}
	return results, nil
}
