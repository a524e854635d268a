package drivers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ternarybob/vantage/internal/models"
)

// cacheWalkDepth bounds how deep the cache strategy looks inside unpacked archives
const cacheWalkDepth = 7

// executableFileName returns the platform file name for a logical executable name
func executableFileName(name string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name + ".exe"
	}
	return name
}

// isExecutable reports whether path is a regular file the current user can run
func isExecutable(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}
	if runtime.GOOS == "windows" {
		return strings.HasSuffix(strings.ToLower(path), ".exe"), nil
	}
	return info.Mode().Perm()&0111 != 0, nil
}

// LocalStrategy looks for the executable in a configured override directory
type LocalStrategy struct {
	Dir string
}

func (s *LocalStrategy) Source() models.Source { return models.SourceLocal }

func (s *LocalStrategy) Locate(ctx context.Context, name string) (models.Executable, error) {
	if s.Dir == "" {
		return models.Executable{}, fmt.Errorf("%w: no local driver directory configured", ErrSkipped)
	}
	path := filepath.Join(s.Dir, executableFileName(name))
	if err := checkExecutable(path); err != nil {
		return models.Executable{}, err
	}
	return models.Executable{Name: name, Path: path, Source: models.SourceLocal}, nil
}

// CacheStrategy looks in the driver cache directory, first at the top level and
// then inside previously unpacked downloads
type CacheStrategy struct {
	Dir string
}

func (s *CacheStrategy) Source() models.Source { return models.SourceCache }

func (s *CacheStrategy) Locate(ctx context.Context, name string) (models.Executable, error) {
	if s.Dir == "" {
		return models.Executable{}, fmt.Errorf("%w: no driver cache directory configured", ErrSkipped)
	}

	flat := filepath.Join(s.Dir, executableFileName(name))
	if err := checkExecutable(flat); err == nil {
		return models.Executable{Name: name, Path: flat, Source: models.SourceCache}, nil
	}

	path, err := findExecutable(s.Dir, candidateNames(name), cacheWalkDepth)
	if err != nil {
		return models.Executable{}, err
	}
	return models.Executable{Name: name, Path: path, Source: models.SourceCache}, nil
}

func checkExecutable(path string) error {
	ok, err := isExecutable(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s does not exist", ErrNotFound, path)
		}
		return fmt.Errorf("cannot stat %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("%s exists but is not executable", path)
	}
	return nil
}

// candidateNames returns name followed by its known aliases, without duplicates
func candidateNames(name string) []string {
	names := []string{name}
	for _, alias := range Aliases(name) {
		if alias != name {
			names = append(names, alias)
		}
	}
	return names
}

// findExecutable walks root (up to maxDepth levels) for an executable file
// named like one of names. Directory order is lexical, so the result is deterministic.
func findExecutable(root string, names []string, maxDepth int) (string, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[executableFileName(n)] = true
	}
	rootDepth := strings.Count(filepath.Clean(root), string(os.PathSeparator))
	var found string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if strings.Count(filepath.Clean(path), string(os.PathSeparator))-rootDepth >= maxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if !want[d.Name()] {
			return nil
		}
		if ok, _ := isExecutable(path); ok {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s does not exist", ErrNotFound, root)
		}
		return "", fmt.Errorf("failed to scan %s: %w", root, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: no executable named %v under %s", ErrNotFound, names, root)
	}
	return found, nil
}
