package deps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/schollz/progressbar/v3"

	"github.com/oshokin/probe-bundler/internal/config"
	"github.com/oshokin/probe-bundler/internal/logger"
	"github.com/oshokin/probe-bundler/internal/tools"
)

// Options contains inputs for the dependency installation step.
type Options struct {
	// Spec is the validated bundle spec.
	Spec *config.Spec
	// Runner executes package manager commands.
	Runner tools.CommandRunner
}

// installer performs the dependency installation workflow.
// It is unexported; callers should use Run.
type installer struct {
	spec   *config.Spec
	runner tools.CommandRunner
}

var (
	errSpecRequired   = errors.New("bundle spec is required")
	errRunnerRequired = errors.New("command runner is required")
	errUnsupportedOS  = errors.New("no system package manager known for this OS")
)

// Run installs system packages, the requirements manifest and the extra
// dependencies declared in the spec. Any failing install aborts the step.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "deps")

	if opts == nil || opts.Spec == nil {
		return errSpecRequired
	}

	if opts.Runner == nil {
		return errRunnerRequired
	}

	ins := &installer{spec: opts.Spec, runner: opts.Runner}

	if err := ins.installSystemPackages(ctx); err != nil {
		return fmt.Errorf("install system packages: %w", err)
	}

	if err := ins.installRequirements(ctx); err != nil {
		return fmt.Errorf("install requirements: %w", err)
	}

	if err := ins.installExtraDependencies(ctx); err != nil {
		return fmt.Errorf("install extra dependencies: %w", err)
	}

	logger.Info(ctx, "Dependency installation completed")

	return nil
}

// installSystemPackages installs OS-level packages one by one with a progress bar.
func (ins *installer) installSystemPackages(ctx context.Context) error {
	packages := ins.spec.SystemPackages
	if len(packages) == 0 {
		return nil
	}

	managerCommand, err := systemInstallCommand()
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(
		len(packages),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(15),
		progressbar.OptionSetDescription("system packages"),
	)

	for _, pkg := range packages {
		logger.DebugKV(ctx, "Installing system package", "package", pkg)

		args := append(managerCommand[1:], pkg) //nolint:gocritic // Fresh slice per package is intended.
		if err = ins.run(ctx, managerCommand[0], args...); err != nil {
			return fmt.Errorf("%s: %w", pkg, err)
		}

		_ = bar.Add(1)
	}

	return nil
}

// installRequirements installs the dependency manifest via the runtime's
// package manager. A spec without a manifest skips the step.
func (ins *installer) installRequirements(ctx context.Context) error {
	manifestFile := ins.spec.RequirementsFile
	if manifestFile == "" {
		return nil
	}

	if _, err := os.Stat(manifestFile); err != nil {
		return fmt.Errorf("requirements manifest: %w", err)
	}

	logger.InfoKV(ctx, "Installing requirements manifest", "path", manifestFile)

	return ins.run(ctx, ins.spec.Runtime, "-m", "pip", "install", "-r", manifestFile)
}

// installExtraDependencies installs the additionally named packages
// (disassembly support lives here) in a single invocation.
func (ins *installer) installExtraDependencies(ctx context.Context) error {
	extras := ins.spec.ExtraDependencies
	if len(extras) == 0 {
		return nil
	}

	logger.InfoKV(ctx, "Installing extra dependencies", "packages", extras)

	args := append([]string{"-m", "pip", "install"}, extras...)

	return ins.run(ctx, ins.spec.Runtime, args...)
}

// run executes one command and surfaces stderr in the returned error.
func (ins *installer) run(ctx context.Context, name string, args ...string) error {
	result, err := ins.runner.Run(ctx, name, args...)
	if err != nil {
		if result != nil && len(result.Stderr) > 0 {
			return fmt.Errorf("%w: %s", err, result.Stderr)
		}

		return err
	}

	return nil
}

// systemInstallCommand returns the package manager invocation for this OS.
func systemInstallCommand() ([]string, error) {
	switch runtime.GOOS {
	case "linux":
		return []string{"apt-get", "install", "-y"}, nil
	case "darwin":
		return []string{"brew", "install"}, nil
	case "windows":
		return []string{"choco", "install", "-y"}, nil
	default:
		return nil, fmt.Errorf("%s: %w", runtime.GOOS, errUnsupportedOS)
	}
}
