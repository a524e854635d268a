package browser

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

const defaultStartupTimeout = 30 * time.Second

// ChromeDPLauncher starts Chrome and Edge through the DevTools protocol
type ChromeDPLauncher struct {
	logger arbor.ILogger
}

// NewChromeDPLauncher creates a launcher for Chromium based families
func NewChromeDPLauncher(logger arbor.ILogger) *ChromeDPLauncher {
	return &ChromeDPLauncher{logger: logger}
}

func (l *ChromeDPLauncher) Engine() models.Engine { return models.EngineChromeDP }

// allocatorOptions converts a launch request into exec allocator options
func allocatorOptions(req interfaces.LaunchRequest) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.ExecPath(req.Executable.Path))

	// Sorted so the command line is stable between runs
	names := make([]string, 0, len(req.Options.Flags))
	for name := range req.Options.Flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, req.Options.Flags[name]))
	}

	// A false flag is dropped from the command line
	for _, sw := range req.Options.ExcludeSwitches {
		opts = append(opts, chromedp.Flag(sw, false))
	}

	if req.Options.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(req.Options.UserAgent))
	}
	if req.Timeout > 0 {
		opts = append(opts, chromedp.WSURLReadTimeout(req.Timeout))
	}
	return opts
}

// Launch starts the browser and verifies it is responsive
func (l *ChromeDPLauncher) Launch(ctx context.Context, req interfaces.LaunchRequest) (interfaces.Browser, error) {
	startTime := time.Now()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultStartupTimeout
	}

	// The browser outlives the launch call, so it hangs off a fresh root context
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(req)...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	b := &chromedpBrowser{
		ctx:             browserCtx,
		cancel:          browserCancel,
		allocatorCancel: allocatorCancel,
		logger:          l.logger,
	}

	var startup []chromedp.Action
	proxy := req.Options.Proxy
	if proxy.Active() && proxy.Username != "" {
		listenForProxyAuth(browserCtx, proxy)
		startup = append(startup, fetch.Enable().WithHandleAuthRequests(true))
	}

	// The first Run allocates the browser and must not use a derived context,
	// otherwise cancelling that context would tear the browser down.
	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(browserCtx, startup...)
	}()

	select {
	case err := <-started:
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to start %s at %s: %w", req.Family, req.Executable.Path, err)
		}
	case <-ctx.Done():
		b.Close()
		return nil, ctx.Err()
	case <-time.After(timeout):
		b.Close()
		return nil, fmt.Errorf("browser %s did not start within %s", req.Family, timeout)
	}

	if err := b.run(ctx, timeout, chromedp.Navigate("about:blank")); err != nil {
		b.Close()
		return nil, fmt.Errorf("browser instance failed startup test: %w", err)
	}

	var title string
	if err := b.run(ctx, timeout, chromedp.Title(&title)); err != nil {
		b.Close()
		return nil, fmt.Errorf("browser instance failed responsiveness test: %w", err)
	}

	l.logger.Debug().
		Str("worker_id", req.WorkerID).
		Str("family", string(req.Family)).
		Str("executable", req.Executable.Path).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser instance created and tested successfully")

	return b, nil
}

// listenForProxyAuth answers proxy authentication challenges with the
// configured credentials and lets every paused request continue
func listenForProxyAuth(browserCtx context.Context, proxy models.ProxySettings) {
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				c := chromedp.FromContext(browserCtx)
				execCtx := cdp.WithExecutor(browserCtx, c.Target)
				resp := &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: proxy.Username,
					Password: proxy.Password,
				}
				_ = fetch.ContinueWithAuth(ev.RequestID, resp).Do(execCtx)
			}()
		case *fetch.EventRequestPaused:
			go func() {
				c := chromedp.FromContext(browserCtx)
				execCtx := cdp.WithExecutor(browserCtx, c.Target)
				_ = fetch.ContinueRequest(ev.RequestID).Do(execCtx)
			}()
		}
	})
}

// chromedpBrowser is a live Chromium tab driven over DevTools
type chromedpBrowser struct {
	ctx             context.Context
	cancel          context.CancelFunc
	allocatorCancel context.CancelFunc
	logger          arbor.ILogger

	mu       sync.RWMutex
	timeouts interfaces.BrowserTimeouts

	closeOnce sync.Once
	closeErr  error
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx
func (b *chromedpBrowser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := b.ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (b *chromedpBrowser) currentTimeouts() interfaces.BrowserTimeouts {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.timeouts
}

func (b *chromedpBrowser) SetTimeouts(timeouts interfaces.BrowserTimeouts) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timeouts = timeouts
}

func (b *chromedpBrowser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, b.currentTimeouts().PageLoad, chromedp.Navigate(url))
}

func (b *chromedpBrowser) Evaluate(ctx context.Context, expression string, out interface{}) error {
	if out == nil {
		var discard interface{}
		out = &discard
	}
	return b.run(ctx, b.currentTimeouts().Implicit, chromedp.Evaluate(expression, out))
}

func (b *chromedpBrowser) Location(ctx context.Context) (string, error) {
	var url string
	err := b.run(ctx, b.currentTimeouts().Implicit, chromedp.Location(&url))
	return url, err
}

func (b *chromedpBrowser) Title(ctx context.Context) (string, error) {
	var title string
	err := b.run(ctx, b.currentTimeouts().Implicit, chromedp.Title(&title))
	return title, err
}

func (b *chromedpBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := b.run(ctx, b.currentTimeouts().PageLoad, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

func (b *chromedpBrowser) SetWindowSize(ctx context.Context, width, height int) error {
	return b.run(ctx, b.currentTimeouts().Implicit, chromedp.ActionFunc(func(ctx context.Context) error {
		windowID, _, err := cdpbrowser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to get window: %w", err)
		}
		// Bounds cannot change while the window is maximized
		if err := cdpbrowser.SetWindowBounds(windowID, &cdpbrowser.Bounds{WindowState: cdpbrowser.WindowStateNormal}).Do(ctx); err != nil {
			return fmt.Errorf("failed to restore window: %w", err)
		}
		bounds := &cdpbrowser.Bounds{Width: int64(width), Height: int64(height)}
		if err := cdpbrowser.SetWindowBounds(windowID, bounds).Do(ctx); err != nil {
			return fmt.Errorf("failed to resize window to %dx%d: %w", width, height, err)
		}
		return nil
	}))
}

func (b *chromedpBrowser) Maximize(ctx context.Context) error {
	return b.run(ctx, b.currentTimeouts().Implicit, chromedp.ActionFunc(func(ctx context.Context) error {
		windowID, _, err := cdpbrowser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to get window: %w", err)
		}
		return cdpbrowser.SetWindowBounds(windowID, &cdpbrowser.Bounds{WindowState: cdpbrowser.WindowStateMaximized}).Do(ctx)
	}))
}

// Close shuts the browser down, then the allocator that launched it
func (b *chromedpBrowser) Close() error {
	b.closeOnce.Do(func() {
		if err := chromedp.Cancel(b.ctx); err != nil && err != context.Canceled {
			b.closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		b.cancel()
		b.allocatorCancel()
	})
	return b.closeErr
}
