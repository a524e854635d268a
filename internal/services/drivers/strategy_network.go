package drivers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/models"
)

var unsafeVersionChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// NetworkStrategy downloads the executable into the cache directory.
// It only runs when auto-download is enabled, offline mode is off and the
// connectivity probe succeeds.
type NetworkStrategy struct {
	CacheDir     string
	AutoDownload bool
	Offline      bool
	Timeout      time.Duration
	Probe        Prober
	Downloads    DownloadSource
	Installer    *Installer
	Logger       arbor.ILogger
}

func (s *NetworkStrategy) Source() models.Source { return models.SourceDownloaded }

func (s *NetworkStrategy) Locate(ctx context.Context, name string) (models.Executable, error) {
	switch {
	case s.Offline:
		return models.Executable{}, fmt.Errorf("%w: offline mode enabled", ErrSkipped)
	case !s.AutoDownload:
		return models.Executable{}, fmt.Errorf("%w: auto-download disabled", ErrSkipped)
	case s.CacheDir == "":
		return models.Executable{}, fmt.Errorf("%w: no driver cache directory configured", ErrSkipped)
	case s.Downloads == nil:
		return models.Executable{}, fmt.Errorf("%w: no download source configured", ErrSkipped)
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	if s.Probe != nil {
		if err := s.Probe.Probe(ctx); err != nil {
			return models.Executable{}, fmt.Errorf("network unavailable: %w", err)
		}
	}

	download, err := s.Downloads.Lookup(ctx, name)
	if err != nil {
		return models.Executable{}, err
	}

	version := unsafeVersionChars.ReplaceAllString(download.Version, "_")
	if version == "" {
		version = "latest"
	}
	dest := filepath.Join(s.CacheDir, name, version)

	startTime := time.Now()
	s.Logger.Info().
		Str("executable", name).
		Str("url", download.URL).
		Str("dest", dest).
		Msg("Downloading executable")

	installer := s.Installer
	if installer == nil {
		installer = &Installer{}
	}
	if err := installer.Install(ctx, download, dest, executableFileName(name)); err != nil {
		os.RemoveAll(dest)
		return models.Executable{}, err
	}

	path, err := findExecutable(dest, candidateNames(name), cacheWalkDepth)
	if err != nil {
		return models.Executable{}, fmt.Errorf("downloaded archive did not contain %s: %w", name, err)
	}

	s.Logger.Info().
		Str("executable", name).
		Str("path", path).
		Dur("duration", time.Since(startTime)).
		Msg("Executable downloaded")

	return models.Executable{Name: name, Path: path, Source: models.SourceDownloaded}, nil
}
