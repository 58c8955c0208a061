package builder

import (
	"context"
	"fmt"
	"runtime"

	"github.com/oshokin/probe-bundler/internal/logger"
)

// smokeTest launches the produced artifact with the configured arguments and
// relies solely on the exit code. Output is not validated.
func (b *builder) smokeTest(ctx context.Context, artifactPath string) error {
	logger.InfoKV(ctx, "Running smoke test",
		"artifact", artifactPath, "args", b.spec.SmokeTest.Args)

	runCtx, cancel := context.WithTimeout(ctx, b.spec.SmokeTest.Timeout)
	defer cancel()

	name, args := smokeCommand(artifactPath, b.spec.SmokeTest.Args)

	result, err := b.runner.Run(runCtx, name, args...)
	if err != nil {
		if result != nil && len(result.Stderr) > 0 {
			return fmt.Errorf("%w: %s", err, result.Stderr)
		}

		return err
	}

	logger.Info(ctx, "Smoke test passed")

	return nil
}

// smokeCommand builds the platform invocation of the artifact.
// Windows bundles are cmd scripts and need the shell to run them.
func smokeCommand(artifactPath string, args []string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd.exe", append([]string{"/C", artifactPath}, args...)
	}

	return artifactPath, args
}
