package packager

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/schollz/progressbar/v3"

	"github.com/oshokin/probe-bundler/internal/logger"
	"github.com/oshokin/probe-bundler/internal/manifest"
)

// stageFiles copies the include trees and the located native libraries into
// the staging directory, skipping excluded modules. It returns the staged
// file list relative to the staging root, sorted for stable manifests.
func (p *packager) stageFiles(ctx context.Context) ([]string, error) {
	excluded := sliceToSet(p.spec.ExcludedModules)

	plan, err := p.buildStagePlan(excluded)
	if err != nil {
		return nil, err
	}

	bar := progressbar.NewOptions(
		len(plan),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(15),
		progressbar.OptionSetDescription("staging"),
	)

	for _, entry := range plan {
		if err = copyFile(entry.source, filepath.Join(p.stageDir, entry.target)); err != nil {
			return nil, fmt.Errorf("copy %s: %w", entry.source, err)
		}

		_ = bar.Add(1)
	}

	staged, err := listRelativeFiles(p.stageDir)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Staged payload", "files", len(staged))

	return staged, nil
}

// stageEntry maps one source file to its path inside the staging root.
type stageEntry struct {
	source string
	target string
}

// buildStagePlan walks the include trees and appends the located libraries.
// Directories whose base name is an excluded module are pruned entirely.
func (p *packager) buildStagePlan(excluded map[string]struct{}) ([]stageEntry, error) {
	var plan []stageEntry

	for _, include := range p.spec.Include {
		root := filepath.Clean(include)

		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("include %s: %w", include, err)
		}

		if !info.IsDir() {
			plan = append(plan, stageEntry{source: root, target: filepath.Base(root)})
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}

			if d.IsDir() {
				if _, skip := excluded[d.Name()]; skip {
					return filepath.SkipDir
				}

				return nil
			}

			rel, relErr := filepath.Rel(filepath.Dir(root), path)
			if relErr != nil {
				return relErr
			}

			plan = append(plan, stageEntry{source: path, target: rel})

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", include, err)
		}
	}

	for _, lib := range p.located {
		plan = append(plan, stageEntry{source: lib.Path, target: filepath.Base(lib.Path)})
	}

	return plan, nil
}

// copyFile copies src to dst, creating parent directories.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), manifest.DefaultFileMode); err != nil {
		return err
	}

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, manifest.DefaultFileMode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return err
	}

	return out.Close()
}

// listRelativeFiles returns all regular files under root, relative and sorted.
func listRelativeFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}

		files = append(files, rel)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)

	return files, nil
}

// sliceToSet converts a slice to a set for quick lookups.
func sliceToSet[T comparable](elements []T) map[T]struct{} {
	result := make(map[T]struct{}, len(elements))
	for _, value := range elements {
		result[value] = struct{}{}
	}

	return result
}
