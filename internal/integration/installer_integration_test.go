package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/probe-bundler/internal/config"
	"github.com/oshokin/probe-bundler/internal/service/installer"
	"github.com/oshokin/probe-bundler/internal/service/packager"
)

// TestBundleRoundtrip packages a bundle and installs it from the output folder.
func TestBundleRoundtrip(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "probectl"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "probectl", "core.py"), []byte("x = 1\n"), 0o644))

	off := false
	spec := &config.Spec{
		ToolName:    "probectl",
		ToolVersion: "0.36.0",
		Entry:       config.EntryPoint{Module: "probectl.__main__"},
		Include:     []string{"probectl"},
		Compress:    &off,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := packager.Run(ctx, &packager.Options{Spec: spec})
	require.NoError(t, err)

	destination := filepath.Join(dir, "bin")

	err = installer.Run(ctx, &installer.Options{
		Source:      spec.OutputDir,
		Destination: destination,
	})
	require.NoError(t, err)

	built, err := os.ReadFile(result.ArtifactPath)
	require.NoError(t, err)

	installed, err := os.ReadFile(filepath.Join(destination, spec.ArtifactName()))
	require.NoError(t, err)
	require.Equal(t, built, installed)
}

// chdir switches the working directory for the test and restores it afterwards.
func chdir(t *testing.T, dir string) {
	t.Helper()

	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
