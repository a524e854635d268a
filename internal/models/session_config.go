package models

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ProxySettings describes the outbound proxy used by both the browser and the
// driver download client.
type ProxySettings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	Bypass   []string
}

// Active reports whether a proxy should actually be applied
func (p ProxySettings) Active() bool {
	return p.Enabled && p.Host != ""
}

// Server returns host:port without scheme or credentials
func (p ProxySettings) Server() string {
	return p.Host + ":" + strconv.Itoa(p.Port)
}

// URL returns the proxy URL including credentials when present.
func (p ProxySettings) URL() *url.URL {
	u := &url.URL{Scheme: "http", Host: p.Server()}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// BypassList joins the bypass hosts with sep (";" for Chromium, "," for NO_PROXY).
func (p ProxySettings) BypassList(sep string) string {
	return strings.Join(p.Bypass, sep)
}

// SessionConfig is the immutable snapshot a single session is built from.
// It is produced once per test invocation and passed by value.
type SessionConfig struct {
	Family          BrowserFamily
	Headless        bool
	Incognito       bool
	Maximize        bool
	WindowWidth     int
	WindowHeight    int
	ImplicitWait    time.Duration
	ExplicitWait    time.Duration
	PageLoadTimeout time.Duration
	PollInterval    time.Duration
	MaxRetries      int
	UserAgent       string
	Proxy           ProxySettings
}

// WindowSize returns the explicit geometry as a display string
func (c SessionConfig) WindowSize() string {
	return fmt.Sprintf("%dx%d", c.WindowWidth, c.WindowHeight)
}
