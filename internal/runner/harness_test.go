package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/models"
	"github.com/ternarybob/vantage/internal/services/sessions"
	"github.com/ternarybob/vantage/internal/services/wait"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	config := common.NewDefaultConfig()
	config.Browser.Headless = true
	config.Test.ThreadCount = 2
	config.Test.RetryCount = 1
	config.Test.ResultsDir = t.TempDir()
	config.Test.SetupSeconds = 5
	config.Timeouts.ExplicitSeconds = 1
	config.Timeouts.PollIntervalMillis = 10
	return config
}

func newTestHarness(t *testing.T, config *common.Config, launcher *fakeLauncher, resolver *fakeResolver) (*Harness, *eventRecorder) {
	t.Helper()
	h, err := New(config, arbor.NewNoOpLogger(),
		WithLaunchers(launcher),
		WithResolver(resolver),
		WithMetrics(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	recorder := &eventRecorder{}
	for _, eventType := range models.AllLifecycleEventTypes() {
		require.NoError(t, h.Events().Subscribe(eventType, recorder.handle))
	}
	return h, recorder
}

func TestHarness_SetUpAndTearDown(t *testing.T) {
	launcher := &fakeLauncher{engine: models.EngineChromeDP}
	h, _ := newTestHarness(t, testConfig(t), launcher, &fakeResolver{})
	ctx := context.Background()

	session, err := h.SetUp(ctx, "worker-1", "")
	require.NoError(t, err)
	assert.Equal(t, sessions.StateReady, session.State())
	assert.Equal(t, models.BrowserChrome, session.Config.Family)

	active, err := h.ActiveSession("worker-1")
	require.NoError(t, err)
	assert.Same(t, session, active)

	waiter, err := h.Waiter("worker-1")
	require.NoError(t, err)
	assert.Equal(t, session.Config.ExplicitWait, waiter.Timeout)

	h.TearDown("worker-1")
	assert.Equal(t, sessions.StateClosed, session.State())
	require.Len(t, launcher.launched(), 1)
	assert.Equal(t, 1, launcher.launched()[0].closed)

	_, err = h.ActiveSession("worker-1")
	var noSession *sessions.NoActiveSessionError
	assert.True(t, errors.As(err, &noSession))

	// teardown without a session is a no-op
	h.TearDown("worker-1")
	h.TearDown("worker-9")
}

func TestHarness_SetUpBrowserOverride(t *testing.T) {
	launcher := &fakeLauncher{engine: models.EngineChromeDP}
	h, _ := newTestHarness(t, testConfig(t), launcher, &fakeResolver{})

	session, err := h.SetUp(context.Background(), "worker-1", "edge")
	require.NoError(t, err)
	assert.Equal(t, models.BrowserEdge, session.Config.Family)
	assert.Equal(t, "msedge", session.Executable.Name)

	_, err = h.SetUp(context.Background(), "worker-2", "safari")
	assert.Error(t, err)
}

func TestHarness_CaptureScreenshot(t *testing.T) {
	config := testConfig(t)
	h, recorder := newTestHarness(t, config, &fakeLauncher{engine: models.EngineChromeDP}, &fakeResolver{})
	ctx := context.Background()

	_, err := h.SetUp(ctx, "worker-1", "")
	require.NoError(t, err)

	path, err := h.CaptureScreenshot(ctx, "worker-1", "login: standard user")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(config.Test.ResultsDir, "screenshots"), filepath.Dir(path))
	assert.NotContains(t, filepath.Base(path), " ")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data)

	shots := recorder.ofType(models.EventTestScreenshot)
	require.Len(t, shots, 1)
	assert.Equal(t, path, shots[0].ScreenshotPath)
	assert.Equal(t, h.RunID(), shots[0].RunID)

	_, err = h.CaptureScreenshot(ctx, "worker-2", "none")
	assert.Error(t, err)
}

func TestHarness_RunRetriesPerInvocation(t *testing.T) {
	config := testConfig(t)
	config.Test.ScreenshotOnFailure = false
	launcher := &fakeLauncher{engine: models.EngineChromeDP}
	h, recorder := newTestHarness(t, config, launcher, &fakeResolver{})

	var flakyCalls int32
	cases := []TestCase{
		{
			Name: "passes",
			Fn: func(ctx context.Context, tc *TestContext) error {
				tc.Step(ctx, "open login page")
				if err := tc.Session.Navigate(ctx, "https://example.test/"); err != nil {
					return err
				}
				return wait.Until(ctx, tc.Waiter, tc.Session, wait.URLContains("example.test"))
			},
		},
		{
			Name: "flaky",
			Fn: func(ctx context.Context, tc *TestContext) error {
				if atomic.AddInt32(&flakyCalls, 1) == 1 {
					return errors.New("first attempt fails")
				}
				return nil
			},
		},
		{
			Name: "broken",
			Fn: func(ctx context.Context, tc *TestContext) error {
				return errors.New("always fails")
			},
		},
		{
			Name: "skipped",
			Fn: func(ctx context.Context, tc *TestContext) error {
				return ErrSkip
			},
		},
		{
			Name: "panics",
			Fn: func(ctx context.Context, tc *TestContext) error {
				panic("page object bug")
			},
		},
	}

	results := h.Run(context.Background(), cases)
	require.Len(t, results, len(cases))

	assert.Equal(t, StatusPassed, results[0].Status)
	assert.Equal(t, 1, results[0].Attempts)

	assert.Equal(t, StatusPassed, results[1].Status)
	assert.Equal(t, 2, results[1].Attempts)

	assert.Equal(t, StatusFailed, results[2].Status)
	assert.Equal(t, 2, results[2].Attempts)
	assert.EqualError(t, results[2].Err, "always fails")

	assert.Equal(t, StatusSkipped, results[3].Status)
	assert.Equal(t, 1, results[3].Attempts)

	assert.Equal(t, StatusFailed, results[4].Status)
	var panicErr *common.PanicError
	assert.True(t, errors.As(results[4].Err, &panicErr))

	for _, r := range results {
		assert.Contains(t, []string{"worker-1", "worker-2"}, r.WorkerID)
	}

	// one session per attempt, every one closed
	browsers := launcher.launched()
	assert.Len(t, browsers, 1+2+2+1+2)
	for _, b := range browsers {
		assert.Equal(t, 1, b.closed)
	}

	_, err := h.ActiveSession("worker-1")
	assert.Error(t, err)
	_, err = h.ActiveSession("worker-2")
	assert.Error(t, err)

	assert.Len(t, recorder.ofType(models.EventTestStart), 8)
	assert.Len(t, recorder.ofType(models.EventTestPass), 2)
	assert.Len(t, recorder.ofType(models.EventTestFail), 5)
	assert.Len(t, recorder.ofType(models.EventTestRetry), 3)
	assert.Len(t, recorder.ofType(models.EventTestSkip), 1)

	steps := recorder.ofType(models.EventTestStep)
	require.Len(t, steps, 1)
	assert.Equal(t, "open login page", steps[0].Step)
	assert.Equal(t, "passes", steps[0].TestName)
}

func TestHarness_RunDataDrivenInvocationsRetryIndependently(t *testing.T) {
	config := testConfig(t)
	config.Test.ScreenshotOnFailure = false
	config.Test.RetryCount = 2
	h, _ := newTestHarness(t, config, &fakeLauncher{engine: models.EngineChromeDP}, &fakeResolver{})

	fail := func(ctx context.Context, tc *TestContext) error { return errors.New("bad credentials") }
	cases := []TestCase{
		{Name: "login", Invocation: 0, Params: []interface{}{"standard_user"}, Fn: fail},
		{Name: "login", Invocation: 1, Params: []interface{}{"locked_out_user"}, Fn: fail},
	}

	results := h.Run(context.Background(), cases)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, StatusFailed, r.Status)
		assert.Equal(t, 3, r.Attempts)
	}
	assert.NotEqual(t, results[0].InstanceID, results[1].InstanceID)
}

func TestHarness_RunSetupFailure(t *testing.T) {
	config := testConfig(t)
	config.Test.RetryCount = 0
	h, recorder := newTestHarness(t, config, &fakeLauncher{engine: models.EngineChromeDP}, &fakeResolver{err: errors.New("no chrome anywhere")})

	var ran int32
	results := h.Run(context.Background(), []TestCase{{
		Name: "never runs",
		Fn: func(ctx context.Context, tc *TestContext) error {
			atomic.AddInt32(&ran, 1)
			return nil
		},
	}})

	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.ErrorContains(t, results[0].Err, "no chrome anywhere")
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
	assert.Len(t, recorder.ofType(models.EventTestFail), 1)
	assert.Empty(t, recorder.ofType(models.EventTestScreenshot))
}

func TestHarness_RunScreenshotOnFailure(t *testing.T) {
	config := testConfig(t)
	config.Test.RetryCount = 0
	config.Test.ScreenshotOnFailure = true
	h, recorder := newTestHarness(t, config, &fakeLauncher{engine: models.EngineChromeDP}, &fakeResolver{})

	results := h.Run(context.Background(), []TestCase{{
		Name: "checkout",
		Fn: func(ctx context.Context, tc *TestContext) error {
			return errors.New("cart empty")
		},
	}})

	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)

	shots := recorder.ofType(models.EventTestScreenshot)
	require.Len(t, shots, 1)
	assert.FileExists(t, shots[0].ScreenshotPath)
}

func TestHarness_RunCancelled(t *testing.T) {
	h, _ := newTestHarness(t, testConfig(t), &fakeLauncher{engine: models.EngineChromeDP}, &fakeResolver{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := h.Run(ctx, []TestCase{
		{Name: "a", Fn: func(ctx context.Context, tc *TestContext) error { return nil }},
		{Name: "b", Fn: func(ctx context.Context, tc *TestContext) error { return nil }},
	})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, StatusFailed, r.Status)
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil, arbor.NewNoOpLogger())
	assert.Error(t, err)
}
