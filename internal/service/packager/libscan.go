package packager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/oshokin/probe-bundler/internal/config"
	"github.com/oshokin/probe-bundler/internal/logger"
)

// LocatedLibrary pairs a spec library entry with the file found on disk.
type LocatedLibrary struct {
	// Library is the spec entry that was searched for.
	Library config.NativeLibrary
	// Path is the location of the matched file.
	Path string
}

// ErrLibraryNotFound is returned when a required native library cannot be
// located in any search root. The build aborts before producing an artifact.
var ErrLibraryNotFound = errors.New("native library not found")

// LocateLibraries searches the spec's library roots for every declared
// native library. Missing required libraries abort the scan; missing
// optional ones only log a warning.
func LocateLibraries(ctx context.Context, spec *config.Spec) ([]LocatedLibrary, error) {
	located := make([]LocatedLibrary, 0, len(spec.Libraries))

	for _, lib := range spec.Libraries {
		path, err := locateOne(spec.LibraryRoots, lib)
		if err != nil {
			if !lib.Required {
				logger.WarnKV(ctx, "Optional native library not found, skipping", "library", lib.Name)
				continue
			}

			return nil, err
		}

		logger.InfoKV(ctx, "Found native library", "library", lib.Name, "path", path)

		located = append(located, LocatedLibrary{Library: lib, Path: path})
	}

	return located, nil
}

// locateOne returns the first file matching any pattern of the library under
// any search root. Matches are sorted so the result is stable across runs.
func locateOne(roots []string, lib config.NativeLibrary) (string, error) {
	for _, root := range roots {
		packageDir := filepath.Join(root, lib.Package)

		for _, pattern := range lib.Patterns {
			matches, err := filepath.Glob(filepath.Join(packageDir, pattern))
			if err != nil {
				return "", fmt.Errorf("bad pattern %q for %s: %w", pattern, lib.Name, err)
			}

			if len(matches) == 0 {
				continue
			}

			sort.Strings(matches)

			return matches[0], nil
		}
	}

	return "", fmt.Errorf("%s (package %s): %w", lib.Name, lib.Package, ErrLibraryNotFound)
}
