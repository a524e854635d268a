package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
	"github.com/ternarybob/vantage/internal/services/browser"
)

// ExecutableResolver locates the executable a session needs
type ExecutableResolver interface {
	Resolve(ctx context.Context, name string) (models.Executable, error)
}

// Factory builds ready-to-use sessions
type Factory struct {
	resolver      ExecutableResolver
	launchers     map[models.Engine]interfaces.BrowserLauncher
	launchTimeout time.Duration
	logger        arbor.ILogger
}

// NewFactory creates a factory. Each launcher serves the families of its engine.
func NewFactory(resolver ExecutableResolver, logger arbor.ILogger, launchTimeout time.Duration, launchers ...interfaces.BrowserLauncher) *Factory {
	byEngine := make(map[models.Engine]interfaces.BrowserLauncher, len(launchers))
	for _, l := range launchers {
		byEngine[l.Engine()] = l
	}
	return &Factory{
		resolver:      resolver,
		launchers:     byEngine,
		launchTimeout: launchTimeout,
		logger:        logger,
	}
}

// Create resolves the executable for cfg.Family, launches the browser and
// applies timeouts and window sizing. A resolution failure is returned as is;
// every later failure closes the partial session and returns *SessionInitError.
func (f *Factory) Create(ctx context.Context, workerID string, cfg models.SessionConfig) (*Session, error) {
	startTime := time.Now()

	if !cfg.Family.IsValid() {
		return nil, &SessionInitError{WorkerID: workerID, Family: cfg.Family, Stage: StageOptions, Err: fmt.Errorf("unsupported browser family")}
	}

	exe, err := f.resolver.Resolve(ctx, cfg.Family.ExecutableName())
	if err != nil {
		return nil, err
	}

	session := newSession(workerID, cfg, exe)
	fail := func(stage Stage, err error) (*Session, error) {
		if closeErr := session.Close(); closeErr != nil {
			f.logger.Warn().
				Str("worker_id", workerID).
				Str("session_id", session.ID).
				Err(closeErr).
				Msg("Failed to close partially initialised session")
		}
		return nil, &SessionInitError{WorkerID: workerID, Family: cfg.Family, Stage: stage, Err: err}
	}

	launcher, ok := f.launchers[cfg.Family.Engine()]
	if !ok {
		return fail(StageLaunch, fmt.Errorf("no launcher registered for engine %s", cfg.Family.Engine()))
	}

	req := interfaces.LaunchRequest{
		WorkerID:   workerID,
		Family:     cfg.Family,
		Executable: exe,
		Options:    browser.BuildOptions(cfg.Family, cfg),
		Timeout:    f.launchTimeout,
	}
	b, err := launcher.Launch(ctx, req)
	if err != nil {
		return fail(StageLaunch, err)
	}
	session.attach(b)

	b.SetTimeouts(interfaces.BrowserTimeouts{
		Implicit: cfg.ImplicitWait,
		PageLoad: cfg.PageLoadTimeout,
	})

	if err := f.applyWindow(ctx, b, cfg); err != nil {
		return fail(StageWindow, err)
	}

	if err := session.markReady(); err != nil {
		return fail(StageReady, err)
	}

	f.logger.Info().
		Str("worker_id", workerID).
		Str("session_id", session.ID).
		Str("family", string(cfg.Family)).
		Str("source", string(exe.Source)).
		Bool("headless", cfg.Headless).
		Dur("duration", time.Since(startTime)).
		Msg("Session ready")

	return session, nil
}

// applyWindow maximizes or sets the explicit geometry. Headless browsers have
// no screen to maximize to, so they get the explicit size instead.
func (f *Factory) applyWindow(ctx context.Context, b interfaces.Browser, cfg models.SessionConfig) error {
	if cfg.Maximize && !cfg.Headless {
		return b.Maximize(ctx)
	}
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		return nil
	}
	if cfg.Maximize {
		f.logger.Debug().
			Str("window_size", cfg.WindowSize()).
			Msg("Headless session cannot maximize, using explicit window size")
	}
	return b.SetWindowSize(ctx, cfg.WindowWidth, cfg.WindowHeight)
}
