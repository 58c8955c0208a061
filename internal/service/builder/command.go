package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/mod/semver"

	"github.com/oshokin/probe-bundler/internal/config"
	"github.com/oshokin/probe-bundler/internal/logger"
	"github.com/oshokin/probe-bundler/internal/manifest"
	"github.com/oshokin/probe-bundler/internal/repository/buildstate"
	"github.com/oshokin/probe-bundler/internal/service/deps"
	"github.com/oshokin/probe-bundler/internal/service/packager"
	"github.com/oshokin/probe-bundler/internal/tools"
)

// Options contains inputs for the full build pipeline.
type Options struct {
	// SpecPath is the path to the bundle spec YAML (defaults to probe-bundle.yaml).
	SpecPath string
	// OutputDir overrides the spec's output directory when non-empty.
	OutputDir string
	// SkipDeps skips the dependency installation step.
	SkipDeps bool
	// SkipSmoke skips the post-build launch check.
	SkipSmoke bool
	// StatePath overrides the build record location.
	StatePath string
	// Runner executes subprocesses (defaults to the local exec runner).
	Runner tools.CommandRunner
}

// builder holds the state of a single pipeline run.
// It is unexported; callers should use Run.
type builder struct {
	spec   *config.Spec
	runner tools.CommandRunner
	states buildstate.Repository
}

var errNilOptions = errors.New("builder options are required")

// Run executes the build pipeline:
// 1) Load and validate the bundle spec.
// 2) Clean the output directory.
// 3) Install dependencies.
// 4) Package the artifact.
// 5) Smoke-test the artifact.
// 6) Record the build and print the summary.
// Any failing step aborts the run.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "probe-builder")

	if opts == nil {
		return errNilOptions
	}

	spec, err := config.Load(opts.SpecPath)
	if err != nil {
		return err
	}

	if opts.OutputDir != "" {
		spec.OutputDir = opts.OutputDir
	}

	runner := opts.Runner
	if runner == nil {
		runner = tools.ExecRunner{}
	}

	b := &builder{
		spec:   spec,
		runner: runner,
		states: buildstate.NewFileRepository(opts.StatePath),
	}

	if err = b.run(ctx, opts); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	logger.Info(ctx, "Build completed successfully")

	return nil
}

func (b *builder) run(ctx context.Context, opts *Options) error {
	logger.InfoKV(ctx, "Cleaning output directory", "path", b.spec.OutputDir)

	if err := b.cleanOutputDir(); err != nil {
		return fmt.Errorf("clean output directory: %w", err)
	}

	if opts.SkipDeps {
		logger.Info(ctx, "Skipping dependency installation")
	} else {
		if err := deps.Run(ctx, &deps.Options{Spec: b.spec, Runner: b.runner}); err != nil {
			return err
		}
	}

	result, err := packager.Run(ctx, &packager.Options{Spec: b.spec})
	if err != nil {
		return err
	}

	if opts.SkipSmoke {
		logger.Info(ctx, "Skipping smoke test")
	} else {
		if err = b.smokeTest(ctx, result.ArtifactPath); err != nil {
			return fmt.Errorf("smoke test: %w", err)
		}
	}

	if err = b.recordBuild(ctx, result); err != nil {
		return fmt.Errorf("record build: %w", err)
	}

	b.printSummary(result)

	return nil
}

// cleanOutputDir removes the previous build output so re-runs never trip
// over stale state, then recreates the directory.
func (b *builder) cleanOutputDir() error {
	if err := os.RemoveAll(b.spec.OutputDir); err != nil {
		return err
	}

	return os.MkdirAll(b.spec.OutputDir, manifest.DefaultFileMode)
}

// recordBuild saves the build record and logs how the version moved
// compared to the previous build.
func (b *builder) recordBuild(ctx context.Context, result *packager.Result) error {
	checksum, err := manifest.FileChecksumBase64(result.ArtifactPath)
	if err != nil {
		return err
	}

	previous, err := b.states.Load(ctx)
	if err != nil && !errors.Is(err, buildstate.ErrNotFound) {
		return err
	}

	b.logVersionChange(ctx, previous)

	record := &buildstate.Record{
		ToolVersion: b.spec.ToolVersion,
		Artifact:    b.spec.ArtifactName(),
		Checksum:    checksum,
		FinishedAt:  time.Now().UTC(),
	}

	return b.states.Save(ctx, record)
}

// logVersionChange compares the current spec version against the previous
// build record using semantic version ordering.
func (b *builder) logVersionChange(ctx context.Context, previous *buildstate.Record) {
	if previous == nil || previous.ToolVersion == "" || b.spec.ToolVersion == "" {
		return
	}

	current, before := "v"+b.spec.ToolVersion, "v"+previous.ToolVersion
	if !semver.IsValid(current) || !semver.IsValid(before) {
		return
	}

	switch semver.Compare(current, before) {
	case 1:
		logger.InfoKV(ctx, "Version upgraded since last build",
			"previous", previous.ToolVersion, "current", b.spec.ToolVersion)
	case -1:
		logger.WarnKV(ctx, "Version downgraded since last build",
			"previous", previous.ToolVersion, "current", b.spec.ToolVersion)
	default:
		logger.InfoKV(ctx, "Rebuilding same version", "version", b.spec.ToolVersion)
	}
}
