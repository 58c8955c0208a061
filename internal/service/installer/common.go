package installer

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/probe-bundler/internal/logger"
)

const (
	// MarkerFilename marks that an install is running right now to avoid
	// parallel execution.
	MarkerFilename = "probe-bundle-install-marker.bin"

	// markerLifetime is the period after which a stale install marker is ignored.
	markerLifetime = 30 * time.Second

	// baseInstallerExecutable is this binary's name, used for stale-marker recovery.
	baseInstallerExecutable = "probe-installer"
)

// IsInstallerRunningNow checks presence of a marker file and attempts
// recovery if it looks stale.
func IsInstallerRunningNow(ctx context.Context) bool {
	logger.Info(ctx, "Checking for the presence of an install marker")

	fileInfo, err := os.Stat(MarkerFilename)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The install marker is too old, attempting cleanup")

		if err = terminateProcessByName(installerExecutable()); err != nil {
			return true
		}

		if err = os.Remove(MarkerFilename); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "Install marker not found, continuing")
		return false
	}

	logger.Infof(ctx, "Unable to read install marker: %v", err)

	return false
}

// terminateProcessByName tries to kill processes with the provided executable name.
func terminateProcessByName(processName string) error {
	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}

// getExecutableExtension returns ".exe" on Windows and "" elsewhere.
func getExecutableExtension() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return ".exe"
	}

	return ""
}

func installerExecutable() string {
	return baseInstallerExecutable + getExecutableExtension()
}
