package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/vantage/internal/models"
)

// PageInspector is the read side of a live browser page. Wait conditions only
// ever need this surface.
type PageInspector interface {
	// Evaluate runs a JavaScript expression and decodes its JSON result into out
	Evaluate(ctx context.Context, expression string, out interface{}) error

	// Location returns the current page URL
	Location(ctx context.Context) (string, error)

	// Title returns the current document title
	Title(ctx context.Context) (string, error)
}

// BrowserTimeouts are the per-session timeouts applied after construction
type BrowserTimeouts struct {
	Implicit time.Duration
	PageLoad time.Duration
}

// Browser is one live automation handle owned by a session.
type Browser interface {
	PageInspector

	Navigate(ctx context.Context, url string) error
	Screenshot(ctx context.Context) ([]byte, error)
	SetTimeouts(timeouts BrowserTimeouts)
	SetWindowSize(ctx context.Context, width, height int) error
	Maximize(ctx context.Context) error

	// Close releases the handle. Implementations must tolerate repeated calls.
	Close() error
}

// LaunchOptions is the backend-neutral option set built for one browser family
type LaunchOptions struct {
	Headless        bool
	Args            []string
	Flags           map[string]interface{}
	ExcludeSwitches []string
	Prefs           map[string]interface{}
	UserAgent       string
	WindowWidth     int
	WindowHeight    int
	Proxy           models.ProxySettings
}

// LaunchRequest carries everything a launcher needs to start a browser
type LaunchRequest struct {
	WorkerID   string
	Family     models.BrowserFamily
	Executable models.Executable
	Options    LaunchOptions
	Timeout    time.Duration
}

// BrowserLauncher constructs live browsers for one automation engine
type BrowserLauncher interface {
	Engine() models.Engine
	Launch(ctx context.Context, req LaunchRequest) (Browser, error)
}
