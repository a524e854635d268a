package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
	"github.com/ternarybob/vantage/internal/services/browser"
	"github.com/ternarybob/vantage/internal/services/drivers"
	"github.com/ternarybob/vantage/internal/services/events"
	"github.com/ternarybob/vantage/internal/services/retry"
	"github.com/ternarybob/vantage/internal/services/sessions"
	"github.com/ternarybob/vantage/internal/services/wait"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Harness is the surface the test runner and page code use: per-worker
// session setup and teardown, wait defaults, retry decisions and lifecycle events.
type Harness struct {
	config   *common.Config
	logger   arbor.ILogger
	runID    string
	resolver sessions.ExecutableResolver
	factory  *sessions.Factory
	registry *sessions.Registry
	tracker  *retry.Tracker
	events   interfaces.EventService

	launchers []interfaces.BrowserLauncher
	metrics   prometheus.Registerer
}

// Option customises a Harness
type Option func(*Harness)

// WithLaunchers replaces the default chromedp and playwright launchers
func WithLaunchers(launchers ...interfaces.BrowserLauncher) Option {
	return func(h *Harness) { h.launchers = launchers }
}

// WithResolver replaces the default resolution chain
func WithResolver(resolver sessions.ExecutableResolver) Option {
	return func(h *Harness) { h.resolver = resolver }
}

// WithMetrics registers the resolution cache counters with reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(h *Harness) { h.metrics = reg }
}

// WithEventService replaces the in-process event bus
func WithEventService(service interfaces.EventService) Option {
	return func(h *Harness) { h.events = service }
}

// New wires a harness from configuration
func New(config *common.Config, logger arbor.ILogger, opts ...Option) (*Harness, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	h := &Harness{
		config:   config,
		logger:   logger,
		runID:    common.NewRunID(),
		registry: sessions.NewRegistry(logger),
		tracker:  retry.NewTracker(config.Test.RetryCount),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.resolver == nil {
		cache := drivers.NewCache(drivers.NewCacheMetrics(h.metrics))
		h.resolver = drivers.NewDefaultResolver(config, cache, logger)
	}
	if h.launchers == nil {
		h.launchers = []interfaces.BrowserLauncher{
			browser.NewChromeDPLauncher(logger),
			browser.NewPlaywrightLauncher(logger),
		}
	}
	if h.events == nil {
		service := events.NewService(logger)
		if err := events.SubscribeLoggerToLifecycle(service, logger); err != nil {
			return nil, err
		}
		h.events = service
	}

	h.factory = sessions.NewFactory(h.resolver, logger, config.SetupTimeout(), h.launchers...)

	logger.Debug().
		Str("run_id", h.runID).
		Int("thread_count", config.Test.ThreadCount).
		Int("retry_count", config.Test.RetryCount).
		Msg("Harness initialized")

	return h, nil
}

// RunID identifies this harness instance in lifecycle events
func (h *Harness) RunID() string { return h.runID }

// Events returns the lifecycle event bus so reporters can subscribe
func (h *Harness) Events() interfaces.EventService { return h.events }

// SetUp builds the session snapshot, creates the session and registers it for
// workerID. Setup is bounded by the configured setup timeout.
func (h *Harness) SetUp(ctx context.Context, workerID, browserOverride string) (*sessions.Session, error) {
	cfg, err := h.config.SessionConfig(browserOverride)
	if err != nil {
		return nil, err
	}

	if timeout := h.config.SetupTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	session, err := h.factory.Create(ctx, workerID, cfg)
	if err != nil {
		h.logger.WithCorrelationId(workerID).Error().
			Str("family", string(cfg.Family)).
			Err(err).
			Msg("Session setup failed")
		return nil, err
	}

	h.registry.Set(workerID, session)
	return session, nil
}

// TearDown closes the worker's session. Safe to call when setup failed or
// never ran; close failures are logged only.
func (h *Harness) TearDown(workerID string) {
	_ = h.registry.Remove(workerID)
}

// ActiveSession returns the worker's session or *sessions.NoActiveSessionError
func (h *Harness) ActiveSession(workerID string) (*sessions.Session, error) {
	return h.registry.Get(workerID)
}

// Waiter returns a waiter using the worker session's explicit wait and poll interval
func (h *Harness) Waiter(workerID string) (*wait.Waiter, error) {
	session, err := h.registry.Get(workerID)
	if err != nil {
		return nil, err
	}
	return wait.NewWaiter(session.Config, h.logger.WithCorrelationId(workerID)), nil
}

// ShouldRetry offers a failure to the retry policy of its invocation
func (h *Harness) ShouldRetry(event models.FailureEvent) bool {
	return h.tracker.ShouldRetry(event)
}

// Step publishes a step description for the reporting subscribers
func (h *Harness) Step(ctx context.Context, workerID, testName, description string) {
	h.publish(ctx, models.LifecycleEvent{
		Type:     models.EventTestStep,
		TestName: testName,
		WorkerID: workerID,
		Step:     description,
	})
}

// CaptureScreenshot writes a PNG of the worker's page into the results
// directory and publishes its path
func (h *Harness) CaptureScreenshot(ctx context.Context, workerID, name string) (string, error) {
	session, err := h.registry.Get(workerID)
	if err != nil {
		return "", err
	}

	data, err := session.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}

	dir := filepath.Join(h.config.Test.ResultsDir, "screenshots")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	fileName := fmt.Sprintf("%s_%s.png", unsafeFileChars.ReplaceAllString(name, "_"), time.Now().Format("20060102-150405.000"))
	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}

	h.publish(ctx, models.LifecycleEvent{
		Type:           models.EventTestScreenshot,
		TestName:       name,
		WorkerID:       workerID,
		ScreenshotPath: path,
	})
	return path, nil
}

// publish delivers synchronously so reporters observe events in order
func (h *Harness) publish(ctx context.Context, event models.LifecycleEvent) {
	event.RunID = h.runID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := h.events.PublishSync(ctx, event); err != nil {
		h.logger.Warn().
			Str("event_type", string(event.Type)).
			Err(err).
			Msg("Lifecycle event delivery failed")
	}
}

// Close tears down any sessions still registered, then the event bus and
// the playwright driver
func (h *Harness) Close() error {
	var errs []error
	if err := h.registry.CloseAll(); err != nil {
		errs = append(errs, err)
	}
	if err := h.events.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, l := range h.launchers {
		if pl, ok := l.(*browser.PlaywrightLauncher); ok {
			if err := pl.Shutdown(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
