package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/models"
	"github.com/ternarybob/vantage/internal/services/retry"
	"github.com/ternarybob/vantage/internal/services/sessions"
	"github.com/ternarybob/vantage/internal/services/wait"
	"github.com/ternarybob/vantage/internal/services/workers"
)

// ErrSkip is returned by a test body to mark the test skipped
var ErrSkip = errors.New("test skipped")

// Status is the final outcome of a test invocation
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// TestFunc is a test body. It runs against the session set up for its worker.
type TestFunc func(ctx context.Context, tc *TestContext) error

// TestCase is one invocation of a test method. Invocation and Params
// distinguish data-driven invocations of the same method for retry accounting.
type TestCase struct {
	Name       string
	Browser    string
	Invocation int
	Params     []interface{}
	Fn         TestFunc
}

// Result records how a test invocation ended
type Result struct {
	Name       string
	InstanceID string
	WorkerID   string
	Status     Status
	Attempts   int
	Elapsed    time.Duration
	Err        error
}

// TestContext is handed to a running test body
type TestContext struct {
	Name     string
	WorkerID string
	Attempt  int
	Session  *sessions.Session
	Waiter   *wait.Waiter

	harness *Harness
}

// Step records a named step in the test report
func (tc *TestContext) Step(ctx context.Context, description string) {
	tc.harness.Step(ctx, tc.WorkerID, tc.Name, description)
}

// Screenshot captures the current page under the test's name
func (tc *TestContext) Screenshot(ctx context.Context) (string, error) {
	return tc.harness.CaptureScreenshot(ctx, tc.WorkerID, tc.Name)
}

// Run executes cases on test.thread_count workers. Every attempt gets its
// own session, torn down when the attempt ends whatever its outcome. Failed
// attempts are retried while the invocation's retry policy allows.
func (h *Harness) Run(ctx context.Context, cases []TestCase) []Result {
	results := make([]Result, len(cases))
	if len(cases) == 0 {
		return results
	}

	pool := workers.NewPool(ctx, h.config.Test.ThreadCount, h.logger)
	pool.Start()

	h.logger.Info().
		Str("run_id", h.runID).
		Int("tests", len(cases)).
		Int("workers", pool.Size()).
		Msg("Starting test run")

	submitted := 0
	for i := range cases {
		err := pool.Submit(func(ctx context.Context, workerID string) error {
			results[i] = h.runCase(ctx, workerID, cases[i])
			return nil
		})
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				err = cerr
			}
			for j := i; j < len(cases); j++ {
				results[j] = Result{
					Name:       cases[j].Name,
					InstanceID: retry.InstanceID(cases[j].Name, cases[j].Invocation, cases[j].Params...),
					Status:     StatusFailed,
					Err:        err,
				}
			}
			break
		}
		submitted++
	}
	pool.Wait()

	for i, r := range results {
		if r.Status != "" {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = fmt.Errorf("test %s was not run", cases[i].Name)
		}
		results[i] = Result{
			Name:       cases[i].Name,
			InstanceID: retry.InstanceID(cases[i].Name, cases[i].Invocation, cases[i].Params...),
			Status:     StatusFailed,
			Err:        err,
		}
	}

	passed, failed, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			passed++
		case StatusSkipped:
			skipped++
		default:
			failed++
		}
	}

	h.logger.Info().
		Str("run_id", h.runID).
		Int("submitted", submitted).
		Int("passed", passed).
		Int("failed", failed).
		Int("skipped", skipped).
		Msg("Test run complete")

	return results
}

func (h *Harness) runCase(ctx context.Context, workerID string, tc TestCase) Result {
	instanceID := retry.InstanceID(tc.Name, tc.Invocation, tc.Params...)
	defer h.tracker.Forget(instanceID)

	result := Result{
		Name:       tc.Name,
		InstanceID: instanceID,
		WorkerID:   workerID,
	}
	start := time.Now()

	for attempt := 1; ; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			result.Status = StatusFailed
			result.Err = err
			break
		}

		h.publish(ctx, models.LifecycleEvent{
			Type:     models.EventTestStart,
			TestName: tc.Name,
			WorkerID: workerID,
			Attempt:  attempt,
		})

		attemptStart := time.Now()
		err := h.runAttempt(ctx, workerID, tc, attempt)
		elapsed := time.Since(attemptStart)

		if err == nil {
			result.Status = StatusPassed
			result.Err = nil
			h.publish(ctx, models.LifecycleEvent{
				Type:     models.EventTestPass,
				TestName: tc.Name,
				WorkerID: workerID,
				Attempt:  attempt,
				Elapsed:  elapsed,
			})
			break
		}

		if errors.Is(err, ErrSkip) {
			result.Status = StatusSkipped
			result.Err = err
			h.publish(ctx, models.LifecycleEvent{
				Type:     models.EventTestSkip,
				TestName: tc.Name,
				WorkerID: workerID,
				Attempt:  attempt,
				Elapsed:  elapsed,
				Err:      err,
			})
			break
		}

		result.Status = StatusFailed
		result.Err = err
		h.publish(ctx, models.LifecycleEvent{
			Type:     models.EventTestFail,
			TestName: tc.Name,
			WorkerID: workerID,
			Attempt:  attempt,
			Elapsed:  elapsed,
			Err:      err,
		})

		retrying := h.ShouldRetry(models.FailureEvent{
			InstanceID: instanceID,
			TestName:   tc.Name,
			WorkerID:   workerID,
			Attempt:    attempt,
			Err:        err,
		})
		if !retrying {
			break
		}

		h.publish(ctx, models.LifecycleEvent{
			Type:     models.EventTestRetry,
			TestName: tc.Name,
			WorkerID: workerID,
			Attempt:  attempt + 1,
			Err:      err,
		})
	}

	result.Elapsed = time.Since(start)
	return result
}

func (h *Harness) runAttempt(ctx context.Context, workerID string, tc TestCase, attempt int) error {
	defer h.TearDown(workerID)

	session, err := h.SetUp(ctx, workerID, tc.Browser)
	if err != nil {
		return err
	}
	if tc.Fn == nil {
		return fmt.Errorf("test %s has no body", tc.Name)
	}

	testCtx := &TestContext{
		Name:     tc.Name,
		WorkerID: workerID,
		Attempt:  attempt,
		Session:  session,
		Waiter:   wait.NewWaiter(session.Config, h.logger.WithCorrelationId(workerID)),
		harness:  h,
	}

	err = common.CallSafely(h.logger.WithCorrelationId(workerID), tc.Name, func() error {
		return tc.Fn(ctx, testCtx)
	})

	if err != nil && !errors.Is(err, ErrSkip) && h.config.Test.ScreenshotOnFailure {
		if _, serr := h.CaptureScreenshot(ctx, workerID, tc.Name); serr != nil {
			h.logger.WithCorrelationId(workerID).Warn().
				Str("test", tc.Name).
				Err(serr).
				Msg("Failure screenshot not captured")
		}
	}
	return err
}
