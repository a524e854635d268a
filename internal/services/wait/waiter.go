package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
)

// Outcome is the result of one evaluation of a condition
type Outcome[T any] struct {
	Value   T
	Matched bool
	// Observed describes the non-matching state, reported on timeout
	Observed string
}

// Condition is a named predicate over the page
type Condition[T any] struct {
	Description string
	Check       func(ctx context.Context, page interfaces.PageInspector) (Outcome[T], error)
}

// Await polls cond against page until it matches, fails with an unrelated
// error, or timeout elapses. The deadline is fixed when Await is called; the
// first check runs immediately and later checks run on interval ticks
// counted from the start. Each check is bounded by the remaining budget.
//
// Errors wrapping ErrNotReady or ErrNoSuchElement, and checks that overrun
// their own budget, count as non-matches. Any other error is returned at
// once. Cancelling ctx aborts the wait with ctx.Err().
func Await[T any](ctx context.Context, page interfaces.PageInspector, cond Condition[T], timeout, interval time.Duration) (T, error) {
	var zero T
	if cond.Check == nil {
		return zero, fmt.Errorf("condition %q has no check", cond.Description)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	start := time.Now()
	deadline := start.Add(timeout)

	var (
		attempts     int
		lastObserved string
		lastErr      error
	)

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		attempts++

		budget := time.Until(deadline)
		if budget < interval {
			budget = interval
		}
		checkCtx, cancel := context.WithTimeout(ctx, budget)
		outcome, err := cond.Check(checkCtx, page)
		cancel()

		switch {
		case err == nil && outcome.Matched:
			return outcome.Value, nil
		case err == nil:
			lastObserved = outcome.Observed
			lastErr = nil
		case ctx.Err() != nil:
			return zero, ctx.Err()
		case isNotReady(err) || errors.Is(err, context.DeadlineExceeded):
			lastErr = err
			if outcome.Observed != "" {
				lastObserved = outcome.Observed
			}
		default:
			return zero, fmt.Errorf("waiting for %s: %w", cond.Description, err)
		}

		now := time.Now()
		if !now.Before(deadline) {
			return zero, &TimeoutError{
				Description:  cond.Description,
				LastObserved: lastObserved,
				LastErr:      lastErr,
				Timeout:      timeout,
				Elapsed:      now.Sub(start),
				Attempts:     attempts,
			}
		}

		// Skip ticks missed by a slow check; the last check lands on the deadline
		next := start.Add(time.Duration(attempts) * interval)
		for !next.After(now) {
			next = next.Add(interval)
		}
		if next.After(deadline) {
			next = deadline
		}

		timer.Reset(next.Sub(now))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// Waiter carries the default timeout and poll interval for a session
type Waiter struct {
	Timeout  time.Duration
	Interval time.Duration
	logger   arbor.ILogger
}

// NewWaiter creates a waiter using the explicit wait and poll interval of cfg
func NewWaiter(cfg models.SessionConfig, logger arbor.ILogger) *Waiter {
	return &Waiter{
		Timeout:  cfg.ExplicitWait,
		Interval: cfg.PollInterval,
		logger:   logger,
	}
}

// WithTimeout returns a copy of the waiter using timeout
func (w *Waiter) WithTimeout(timeout time.Duration) *Waiter {
	c := *w
	c.Timeout = timeout
	return &c
}

// For awaits cond with the waiter's defaults
func For[T any](ctx context.Context, w *Waiter, page interfaces.PageInspector, cond Condition[T]) (T, error) {
	startTime := time.Now()
	value, err := Await(ctx, page, cond, w.Timeout, w.Interval)

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		w.logger.Debug().
			Str("condition", cond.Description).
			Str("last_observed", timeoutErr.LastObserved).
			Int("attempts", timeoutErr.Attempts).
			Dur("elapsed", timeoutErr.Elapsed).
			Msg("Wait timed out")
	} else if err == nil {
		w.logger.Trace().
			Str("condition", cond.Description).
			Dur("elapsed", time.Since(startTime)).
			Msg("Wait satisfied")
	}
	return value, err
}

// Until awaits cond of any result type and reports only the error
func Until[T any](ctx context.Context, w *Waiter, page interfaces.PageInspector, cond Condition[T]) error {
	_, err := For(ctx, w, page, cond)
	return err
}

// Until awaits a boolean condition and reports only the error.
// Use the package-level Until or For for string and count conditions.
func (w *Waiter) Until(ctx context.Context, page interfaces.PageInspector, cond Condition[bool]) error {
	return Until(ctx, w, page, cond)
}
