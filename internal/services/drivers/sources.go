package drivers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// DefaultChromeForTestingEndpoint lists the last known good Chrome builds per channel
const DefaultChromeForTestingEndpoint = "https://googlechromelabs.github.io/chrome-for-testing/last-known-good-versions-with-downloads.json"

// ErrNoDownloadSource is returned when no source knows how to download a name
var ErrNoDownloadSource = errors.New("no download source for executable")

// Download describes where an executable archive can be fetched from
type Download struct {
	URL     string
	Version string
}

// DownloadSource maps an executable name to a download location
type DownloadSource interface {
	Lookup(ctx context.Context, name string) (Download, error)
}

// Platform returns the platform tag used by Chrome for Testing for the running OS/arch
func Platform() string {
	return platformFor(runtime.GOOS, runtime.GOARCH)
}

func platformFor(goos, goarch string) string {
	switch goos {
	case "linux":
		return "linux64"
	case "darwin":
		if goarch == "arm64" {
			return "mac-arm64"
		}
		return "mac-x64"
	case "windows":
		if goarch == "386" {
			return "win32"
		}
		return "win64"
	}
	return goos + "-" + goarch
}

// StaticSource expands configured URL templates. Supported placeholders:
// {name}, {os}, {arch} and {platform}.
type StaticSource struct {
	Templates map[string]string
}

func (s *StaticSource) Lookup(ctx context.Context, name string) (Download, error) {
	tmpl, ok := s.Templates[name]
	if !ok || tmpl == "" {
		return Download{}, fmt.Errorf("%w %q in configured download_urls", ErrNoDownloadSource, name)
	}
	replacer := strings.NewReplacer(
		"{name}", name,
		"{os}", runtime.GOOS,
		"{arch}", runtime.GOARCH,
		"{platform}", Platform(),
	)
	return Download{URL: replacer.Replace(tmpl), Version: "configured"}, nil
}

// ChromeForTestingSource resolves chrome and chrome-headless-shell from the
// Chrome for Testing stable channel
type ChromeForTestingSource struct {
	Endpoint string
	Client   *http.Client
	Platform string
}

type cftVersions struct {
	Channels map[string]struct {
		Version   string `json:"version"`
		Downloads map[string][]struct {
			Platform string `json:"platform"`
			URL      string `json:"url"`
		} `json:"downloads"`
	} `json:"channels"`
}

func (s *ChromeForTestingSource) Lookup(ctx context.Context, name string) (Download, error) {
	if name != "chrome" && name != "chrome-headless-shell" {
		return Download{}, fmt.Errorf("%w %q in Chrome for Testing", ErrNoDownloadSource, name)
	}

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = DefaultChromeForTestingEndpoint
	}
	platform := s.Platform
	if platform == "" {
		platform = Platform()
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Download{}, fmt.Errorf("invalid Chrome for Testing endpoint: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Download{}, fmt.Errorf("failed to fetch Chrome for Testing versions: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Download{}, fmt.Errorf("Chrome for Testing versions returned %d", resp.StatusCode)
	}

	var versions cftVersions
	if err := json.NewDecoder(resp.Body).Decode(&versions); err != nil {
		return Download{}, fmt.Errorf("failed to decode Chrome for Testing versions: %w", err)
	}

	stable, ok := versions.Channels["Stable"]
	if !ok {
		return Download{}, fmt.Errorf("Chrome for Testing versions have no Stable channel")
	}
	for _, d := range stable.Downloads[name] {
		if d.Platform == platform {
			return Download{URL: d.URL, Version: stable.Version}, nil
		}
	}
	return Download{}, fmt.Errorf("%w %q on platform %s", ErrNoDownloadSource, name, platform)
}

// ChainSource asks each source in order and returns the first hit
type ChainSource []DownloadSource

func (c ChainSource) Lookup(ctx context.Context, name string) (Download, error) {
	var errs []error
	for _, source := range c {
		d, err := source.Lookup(ctx, name)
		if err == nil {
			return d, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Download{}, fmt.Errorf("%w %q", ErrNoDownloadSource, name)
	}
	return Download{}, errors.Join(errs...)
}
