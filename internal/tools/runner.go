package tools

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result carries the captured output of a finished command.
type Result struct {
	// Stdout is the captured standard output.
	Stdout []byte
	// Stderr is the captured standard error.
	Stderr []byte
	// ExitCode is the process exit code (127 when the binary was not found).
	ExitCode int
}

// CommandRunner abstracts subprocess execution so build steps can be tested
// without touching the host system.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecRunner executes commands on the local host via os/exec.
type ExecRunner struct{}

// Run executes the command, honoring context cancellation, and returns the
// captured output. A non-zero exit is reported both in the Result and as an
// error so callers can fail fast.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, err
	}

	// The binary itself could not be started.
	result.ExitCode = 127

	return result, err
}
