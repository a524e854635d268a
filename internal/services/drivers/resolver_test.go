package drivers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/models"
)

// writeExecutable creates an executable stub named name inside dir
func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, executableFileName(name))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0755))
	return path
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("executable permission bits are not meaningful on windows")
	}
}

type stubStrategy struct {
	source models.Source
	exe    models.Executable
	err    error
	calls  int
}

func (s *stubStrategy) Source() models.Source { return s.source }

func (s *stubStrategy) Locate(ctx context.Context, name string) (models.Executable, error) {
	s.calls++
	if s.err != nil {
		return models.Executable{}, s.err
	}
	exe := s.exe
	exe.Name = name
	exe.Source = s.source
	return exe, nil
}

func TestResolver_FirstSuccessWins(t *testing.T) {
	local := &stubStrategy{source: models.SourceLocal, err: ErrNotFound}
	cached := &stubStrategy{source: models.SourceCache, exe: models.Executable{Path: "/cache/chrome"}}
	system := &stubStrategy{source: models.SourceSystemPath, exe: models.Executable{Path: "/usr/bin/chrome"}}

	resolver := NewResolver(NewCache(nil), arbor.NewNoOpLogger(), local, cached, system)

	exe, err := resolver.Resolve(context.Background(), "chrome")
	require.NoError(t, err)

	assert.Equal(t, models.SourceCache, exe.Source)
	assert.Equal(t, "/cache/chrome", exe.Path)
	assert.False(t, exe.ResolvedAt.IsZero())
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 0, system.calls)
}

func TestResolver_LocalTakesPriority(t *testing.T) {
	skipOnWindows(t)

	localDir := t.TempDir()
	cacheDir := t.TempDir()
	localPath := writeExecutable(t, localDir, "chrome")
	writeExecutable(t, cacheDir, "chrome")

	resolver := NewResolver(NewCache(nil), arbor.NewNoOpLogger(),
		&LocalStrategy{Dir: localDir},
		&CacheStrategy{Dir: cacheDir},
	)

	exe, err := resolver.Resolve(context.Background(), "chrome")
	require.NoError(t, err)
	assert.Equal(t, models.SourceLocal, exe.Source)
	assert.Equal(t, localPath, exe.Path)
}

func TestResolver_FallsThroughToSystemPath(t *testing.T) {
	skipOnWindows(t)

	pathDir := t.TempDir()
	expected := writeExecutable(t, pathDir, "google-chrome")
	t.Setenv("PATH", pathDir)

	resolver := NewResolver(NewCache(nil), arbor.NewNoOpLogger(),
		&LocalStrategy{Dir: t.TempDir()},
		&CacheStrategy{Dir: t.TempDir()},
		&NetworkStrategy{AutoDownload: false, CacheDir: t.TempDir(), Logger: arbor.NewNoOpLogger()},
		&SystemStrategy{},
	)

	exe, err := resolver.Resolve(context.Background(), "chrome")
	require.NoError(t, err)
	assert.Equal(t, models.SourceSystemPath, exe.Source)
	assert.Equal(t, expected, exe.Path)
}

func TestResolver_CommonInstallDirectory(t *testing.T) {
	skipOnWindows(t)

	t.Setenv("PATH", t.TempDir())
	installDir := t.TempDir()
	expected := writeExecutable(t, installDir, "firefox-esr")

	resolver := NewResolver(NewCache(nil), arbor.NewNoOpLogger(),
		&SystemStrategy{InstallDirs: []string{t.TempDir(), installDir}},
	)

	exe, err := resolver.Resolve(context.Background(), "firefox")
	require.NoError(t, err)
	assert.Equal(t, models.SourceCommonInstall, exe.Source)
	assert.Equal(t, expected, exe.Path)
}

func TestResolver_ErrorListsEverySource(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	resolver := NewResolver(NewCache(nil), arbor.NewNoOpLogger(),
		&LocalStrategy{Dir: t.TempDir()},
		&CacheStrategy{Dir: t.TempDir()},
		&NetworkStrategy{Offline: true, AutoDownload: true, Logger: arbor.NewNoOpLogger()},
		&SystemStrategy{InstallDirs: []string{t.TempDir()}},
	)

	_, err := resolver.Resolve(context.Background(), "no-such-browser")
	require.Error(t, err)

	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, "no-such-browser", resErr.Name)
	assert.Equal(t, []models.Source{
		models.SourceLocal,
		models.SourceCache,
		models.SourceDownloaded,
		models.SourceSystemPath,
	}, resErr.Sources())

	msg := err.Error()
	for _, source := range resErr.Sources() {
		assert.Contains(t, msg, string(source))
	}
	assert.Contains(t, msg, "offline mode enabled")
	assert.True(t, errors.Is(resErr.Attempts[2].Reason, ErrSkipped))
}

func TestResolver_EmptyName(t *testing.T) {
	resolver := NewResolver(nil, arbor.NewNoOpLogger())
	_, err := resolver.Resolve(context.Background(), "")
	assert.Error(t, err)
}

func TestResolver_PrepareCreatesDirectories(t *testing.T) {
	root := t.TempDir()
	localDir := filepath.Join(root, "drivers")
	cacheDir := filepath.Join(root, "drivers", ".cache")

	resolver := NewResolver(NewCache(nil), arbor.NewNoOpLogger(),
		&stubStrategy{source: models.SourceCache, exe: models.Executable{Path: "/cache/bin"}},
	)

	results, err := resolver.Prepare(context.Background(), []string{localDir, cacheDir}, "chrome", "firefox")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.DirExists(t, localDir)
	assert.DirExists(t, cacheDir)
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, r.Name, r.Executable.Name)
	}
}

func TestCacheStrategy_FindsNestedArchiveLayout(t *testing.T) {
	skipOnWindows(t)

	cacheDir := t.TempDir()
	expected := writeExecutable(t, filepath.Join(cacheDir, "chrome", "131.0.6778.85", "chrome-linux64"), "chrome")

	exe, err := (&CacheStrategy{Dir: cacheDir}).Locate(context.Background(), "chrome")
	require.NoError(t, err)
	assert.Equal(t, expected, exe.Path)
	assert.Equal(t, models.SourceCache, exe.Source)
}

func TestLocalStrategy_NonExecutableFile(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chrome"), []byte("data"), 0644))

	_, err := (&LocalStrategy{Dir: dir}).Locate(context.Background(), "chrome")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "not executable")
}
