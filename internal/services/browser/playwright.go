package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// PlaywrightLauncher starts Firefox through the playwright driver.
// The driver is started lazily on first launch and shared by every session.
type PlaywrightLauncher struct {
	logger arbor.ILogger

	mu sync.Mutex
	pw *playwright.Playwright
}

// NewPlaywrightLauncher creates a launcher for Firefox
func NewPlaywrightLauncher(logger arbor.ILogger) *PlaywrightLauncher {
	return &PlaywrightLauncher{logger: logger}
}

func (l *PlaywrightLauncher) Engine() models.Engine { return models.EnginePlaywright }

// driver installs (driver only, browsers are resolved separately) and starts playwright once
func (l *PlaywrightLauncher) driver() (*playwright.Playwright, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw != nil {
		return l.pw, nil
	}

	opts := &playwright.RunOptions{
		SkipInstallBrowsers: true,
		Verbose:             false,
		Stdout:              io.Discard,
		Stderr:              io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("failed to install playwright driver: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	l.logger.Debug().Msg("Playwright driver started")
	l.pw = pw
	return pw, nil
}

// Shutdown stops the shared playwright driver
func (l *PlaywrightLauncher) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw == nil {
		return nil
	}
	err := l.pw.Stop()
	l.pw = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

func launchOptions(req interfaces.LaunchRequest) playwright.BrowserTypeLaunchOptions {
	opts := playwright.BrowserTypeLaunchOptions{
		Headless:         playwright.Bool(req.Options.Headless),
		ExecutablePath:   playwright.String(req.Executable.Path),
		FirefoxUserPrefs: req.Options.Prefs,
	}

	// playwright applies headless itself
	for _, arg := range req.Options.Args {
		if arg != "-headless" {
			opts.Args = append(opts.Args, arg)
		}
	}

	if req.Timeout > 0 {
		opts.Timeout = playwright.Float(float64(req.Timeout.Milliseconds()))
	}

	proxy := req.Options.Proxy
	if proxy.Active() {
		opts.Proxy = &playwright.Proxy{Server: "http://" + proxy.Server()}
		if len(proxy.Bypass) > 0 {
			opts.Proxy.Bypass = playwright.String(proxy.BypassList(","))
		}
		if proxy.Username != "" {
			opts.Proxy.Username = playwright.String(proxy.Username)
			opts.Proxy.Password = playwright.String(proxy.Password)
		}
	}
	return opts
}

// Launch starts Firefox with an isolated context and a single page
func (l *PlaywrightLauncher) Launch(ctx context.Context, req interfaces.LaunchRequest) (interfaces.Browser, error) {
	startTime := time.Now()

	pw, err := l.driver()
	if err != nil {
		return nil, err
	}

	b, err := await(ctx, func() (*playwrightBrowser, error) {
		browser, err := pw.Firefox.Launch(launchOptions(req))
		if err != nil {
			return nil, fmt.Errorf("failed to launch %s at %s: %w", req.Family, req.Executable.Path, err)
		}

		contextOpts := playwright.BrowserNewContextOptions{}
		if req.Options.WindowWidth > 0 && req.Options.WindowHeight > 0 {
			contextOpts.Viewport = &playwright.Size{
				Width:  req.Options.WindowWidth,
				Height: req.Options.WindowHeight,
			}
		}
		if req.Options.UserAgent != "" {
			contextOpts.UserAgent = playwright.String(req.Options.UserAgent)
		}
		browserContext, err := browser.NewContext(contextOpts)
		if err != nil {
			browser.Close()
			return nil, fmt.Errorf("failed to create context: %w", err)
		}

		page, err := browserContext.NewPage()
		if err != nil {
			browserContext.Close()
			browser.Close()
			return nil, fmt.Errorf("failed to create page: %w", err)
		}

		return &playwrightBrowser{browser: browser, context: browserContext, page: page}, nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Debug().
		Str("worker_id", req.WorkerID).
		Str("family", string(req.Family)).
		Str("executable", req.Executable.Path).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser instance created")

	return b, nil
}

// await runs fn and stops waiting when ctx is done. Playwright calls are not
// context aware, so an abandoned call finishes in the background.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// playwrightBrowser is a live Firefox page
type playwrightBrowser struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	closeOnce sync.Once
	closeErr  error
}

func (b *playwrightBrowser) SetTimeouts(timeouts interfaces.BrowserTimeouts) {
	if timeouts.Implicit > 0 {
		b.page.SetDefaultTimeout(float64(timeouts.Implicit.Milliseconds()))
	}
	if timeouts.PageLoad > 0 {
		b.page.SetDefaultNavigationTimeout(float64(timeouts.PageLoad.Milliseconds()))
	}
}

func (b *playwrightBrowser) Navigate(ctx context.Context, url string) error {
	_, err := await(ctx, func() (playwright.Response, error) {
		return b.page.Goto(url)
	})
	return err
}

// Evaluate round-trips the playwright result through JSON so out receives
// the same shapes the DevTools backend produces
func (b *playwrightBrowser) Evaluate(ctx context.Context, expression string, out interface{}) error {
	value, err := await(ctx, func() (interface{}, error) {
		return b.page.Evaluate(expression)
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode evaluation result: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func (b *playwrightBrowser) Location(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return b.page.URL(), nil
}

func (b *playwrightBrowser) Title(ctx context.Context) (string, error) {
	return await(ctx, b.page.Title)
}

func (b *playwrightBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	return await(ctx, func() ([]byte, error) {
		return b.page.Screenshot()
	})
}

func (b *playwrightBrowser) SetWindowSize(ctx context.Context, width, height int) error {
	_, err := await(ctx, func() (struct{}, error) {
		return struct{}{}, b.page.SetViewportSize(width, height)
	})
	return err
}

// Maximize sizes the viewport to the screen reported by the page
func (b *playwrightBrowser) Maximize(ctx context.Context) error {
	var screen struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := b.Evaluate(ctx, "({width: screen.availWidth, height: screen.availHeight})", &screen); err != nil {
		return fmt.Errorf("failed to read screen size: %w", err)
	}
	if screen.Width <= 0 || screen.Height <= 0 {
		return fmt.Errorf("screen size unavailable")
	}
	return b.SetWindowSize(ctx, screen.Width, screen.Height)
}

func (b *playwrightBrowser) Close() error {
	b.closeOnce.Do(func() {
		if err := b.context.Close(); err != nil {
			b.closeErr = fmt.Errorf("failed to close browser context: %w", err)
		}
		if err := b.browser.Close(); err != nil && b.closeErr == nil {
			b.closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
	})
	return b.closeErr
}
