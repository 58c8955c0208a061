package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/probe-bundler/internal/config"
	"github.com/oshokin/probe-bundler/internal/repository/buildstate"
	"github.com/oshokin/probe-bundler/internal/tools"
)

// fakeRunner records invocations and fails on command lines matching failOn.
type fakeRunner struct {
	calls  []string
	failOn string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (*tools.Result, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, line)

	if f.failOn != "" && strings.Contains(line, f.failOn) {
		return &tools.Result{ExitCode: 1, Stderr: []byte("smoke failed")}, errors.New("exit status 1")
	}

	return &tools.Result{}, nil
}

// writeFixture lays out tool sources, a native library and a spec file,
// returning the spec path.
func writeFixture(t *testing.T, dir string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "probectl"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "probectl", "core.py"), []byte("x = 1\n"), 0o644))

	libRoot := filepath.Join(dir, "site-packages")
	require.NoError(t, os.MkdirAll(filepath.Join(libRoot, "cmsis_pack_manager"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(libRoot, "cmsis_pack_manager", "_cmsis_pack_manager.so"), []byte("elf"), 0o644))

	off := false
	spec := &config.Spec{
		ToolName:     "probectl",
		ToolVersion:  "0.36.0",
		Entry:        config.EntryPoint{Module: "probectl.__main__"},
		Include:      []string{"probectl"},
		LibraryRoots: []string{libRoot},
		Libraries: []config.NativeLibrary{
			{Name: "pack-manager", Package: "cmsis_pack_manager", Patterns: []string{"_cmsis_pack_manager*"}, Required: true},
		},
		Compress: &off,
	}

	path := filepath.Join(dir, config.DefaultSpecFilename)
	require.NoError(t, config.Save(path, spec))

	return path
}

// TestRunFullPipeline runs the pipeline with a scripted runner and verifies
// the artifact, the smoke invocation and the build record.
func TestRunFullPipeline(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	specPath := writeFixture(t, dir)
	runner := &fakeRunner{}

	err := Run(context.Background(), &Options{
		SpecPath: specPath,
		SkipDeps: true,
		Runner:   runner,
	})
	require.NoError(t, err)

	// Artifact exists.
	_, err = os.Stat(filepath.Join("dist", "probectl"))
	require.NoError(t, err)

	// Smoke test invoked the artifact with --help.
	require.Len(t, runner.calls, 1)
	require.Contains(t, runner.calls[0], "probectl")
	require.Contains(t, runner.calls[0], "--help")

	// Build record was written.
	record, err := buildstate.NewFileRepository("").Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "0.36.0", record.ToolVersion)
	require.NotEmpty(t, record.Checksum)
}

// TestRunIsIdempotent re-runs the build over stale output without failing.
func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	specPath := writeFixture(t, dir)

	// Stale junk from a previous build.
	require.NoError(t, os.MkdirAll("dist", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("dist", "stale"), []byte("old"), 0o644))

	opts := &Options{SpecPath: specPath, SkipDeps: true, SkipSmoke: true, Runner: &fakeRunner{}}

	require.NoError(t, Run(context.Background(), opts))
	require.NoError(t, Run(context.Background(), opts))

	// Stale file was swept away by the clean step.
	_, err := os.Stat(filepath.Join("dist", "stale"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRunSmokeFailureAborts surfaces the smoke test failure with stderr attached.
func TestRunSmokeFailureAborts(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	specPath := writeFixture(t, dir)
	runner := &fakeRunner{failOn: "--help"}

	err := Run(context.Background(), &Options{
		SpecPath: specPath,
		SkipDeps: true,
		Runner:   runner,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "smoke failed")
}

// TestRunMissingSpec fails fast when the spec file does not exist.
func TestRunMissingSpec(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{
		SpecPath: filepath.Join(t.TempDir(), "nope.yaml"),
	})
	require.Error(t, err)
}

// chdir switches the working directory for the test and restores it afterwards.
func chdir(t *testing.T, dir string) {
	t.Helper()

	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
