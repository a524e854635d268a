package drivers

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/ternarybob/vantage/internal/models"
)

// systemAliases maps a logical executable name to the names it is commonly
// installed under
var systemAliases = map[string][]string{
	"chrome":                {"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome", "Google Chrome", "Chromium", "Google Chrome for Testing"},
	"chrome-headless-shell": {"chrome-headless-shell"},
	"msedge":                {"microsoft-edge", "microsoft-edge-stable", "msedge", "Microsoft Edge"},
	"firefox":               {"firefox", "firefox-esr"},
}

// Aliases returns the candidate names searched on the system for name
func Aliases(name string) []string {
	if aliases, ok := systemAliases[name]; ok {
		return aliases
	}
	return []string{name}
}

// DefaultCommonInstallDirs returns the well-known install directories for the current platform
func DefaultCommonInstallDirs() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application`,
			`C:\Program Files (x86)\Google\Chrome\Application`,
			`C:\Program Files\Microsoft\Edge\Application`,
			`C:\Program Files (x86)\Microsoft\Edge\Application`,
			`C:\Program Files\Mozilla Firefox`,
			`C:\Program Files (x86)\Mozilla Firefox`,
		}
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS",
			"/Applications/Chromium.app/Contents/MacOS",
			"/Applications/Microsoft Edge.app/Contents/MacOS",
			"/Applications/Firefox.app/Contents/MacOS",
			"/opt/homebrew/bin",
			"/usr/local/bin",
		}
	default:
		return []string{
			"/usr/bin",
			"/usr/local/bin",
			"/opt/google/chrome",
			"/opt/microsoft/msedge",
			"/usr/lib/firefox",
			"/snap/bin",
		}
	}
}

// SystemStrategy searches PATH, then a fixed list of install directories.
// PATH matches report SYSTEM_PATH, install directory matches COMMON_INSTALL.
type SystemStrategy struct {
	InstallDirs []string
}

func (s *SystemStrategy) Source() models.Source { return models.SourceSystemPath }

func (s *SystemStrategy) Locate(ctx context.Context, name string) (models.Executable, error) {
	aliases := Aliases(name)

	for _, alias := range aliases {
		if path, err := exec.LookPath(alias); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			return models.Executable{Name: name, Path: path, Source: models.SourceSystemPath}, nil
		}
	}

	for _, dir := range s.InstallDirs {
		for _, alias := range aliases {
			path := filepath.Join(dir, executableFileName(alias))
			if ok, _ := isExecutable(path); ok {
				return models.Executable{Name: name, Path: path, Source: models.SourceCommonInstall}, nil
			}
		}
	}

	return models.Executable{}, fmt.Errorf("%w: %v not on PATH or in %d install directories", ErrNotFound, aliases, len(s.InstallDirs))
}
