package models

import (
	"fmt"
	"strings"
)

// BrowserFamily is the closed set of browsers a session can be built for.
type BrowserFamily string

const (
	BrowserChrome  BrowserFamily = "chrome"
	BrowserFirefox BrowserFamily = "firefox"
	BrowserEdge    BrowserFamily = "edge"
)

// Engine names the automation backend that drives a family.
type Engine string

const (
	EngineChromeDP   Engine = "chromedp"
	EnginePlaywright Engine = "playwright"
)

// AllBrowserFamilies returns every supported family in a stable order
func AllBrowserFamilies() []BrowserFamily {
	return []BrowserFamily{BrowserChrome, BrowserFirefox, BrowserEdge}
}

// ParseBrowserFamily normalises a configured browser name.
// Returns an error for unknown names so callers can decide on a fallback.
func ParseBrowserFamily(name string) (BrowserFamily, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "chrome", "chromium", "google-chrome":
		return BrowserChrome, nil
	case "firefox", "gecko":
		return BrowserFirefox, nil
	case "edge", "msedge", "microsoftedge":
		return BrowserEdge, nil
	}
	return "", fmt.Errorf("unsupported browser: %q", name)
}

// IsValid checks if the family is one of the supported browsers
func (f BrowserFamily) IsValid() bool {
	switch f {
	case BrowserChrome, BrowserFirefox, BrowserEdge:
		return true
	}
	return false
}

// ExecutableName is the logical name of the binary the family needs.
func (f BrowserFamily) ExecutableName() string {
	switch f {
	case BrowserFirefox:
		return "firefox"
	case BrowserEdge:
		return "msedge"
	default:
		return "chrome"
	}
}

// Engine returns the backend used to drive the family
func (f BrowserFamily) Engine() Engine {
	if f == BrowserFirefox {
		return EnginePlaywright
	}
	return EngineChromeDP
}
