package packager

import (
	"archive/tar"
	"bytes"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/probe-bundler/internal/config"
)

func stageFixture(t *testing.T) string {
	t.Helper()

	stage := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(stage, "probectl"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stage, "probectl_launcher.py"), []byte("print('hi')\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stage, "probectl", "core.py"), []byte("x = 1\n"), 0o644))

	return stage
}

func assembleSpec(compress bool) *config.Spec {
	return &config.Spec{
		ToolName: "probectl",
		Runtime:  "python3",
		Entry:    config.EntryPoint{Module: "probectl.__main__", Callable: "main", ScriptName: "probectl_launcher.py"},
		Compress: &compress,
	}
}

// extractUnixPayload parses the stub's tail offset and returns the payload bytes.
func extractUnixPayload(t *testing.T, artifact []byte) []byte {
	t.Helper()

	text := string(artifact)
	marker := "tail -c +"
	idx := strings.Index(text, marker)
	require.Positive(t, idx)

	digits := text[idx+len(marker) : idx+len(marker)+len(offsetPlaceholder)]
	offset, err := strconv.Atoi(digits)
	require.NoError(t, err)
	require.LessOrEqual(t, offset, len(artifact))

	return artifact[offset-1:]
}

func readTarNames(t *testing.T, payload io.Reader) []string {
	t.Helper()

	var names []string

	reader := tar.NewReader(payload)
	for {
		header, err := reader.Next()
		if err == io.EOF {
			break
		}

		require.NoError(t, err)

		names = append(names, header.Name)
	}

	return names
}

// TestAssembleUnixCompressed verifies the sh stub, the offset math and the gzip payload.
func TestAssembleUnixCompressed(t *testing.T) {
	t.Parallel()

	stage := stageFixture(t)
	out := filepath.Join(t.TempDir(), "probectl")

	require.NoError(t, assembleForPlatform("linux", assembleSpec(true), stage, out))

	info, err := os.Stat(out)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	artifact, err := os.ReadFile(out)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(artifact, []byte("#!/bin/sh")))
	require.Contains(t, string(artifact), "tar -xz -C")

	payload := extractUnixPayload(t, artifact)

	gz, err := gzip.NewReader(bytes.NewReader(payload))
	require.NoError(t, err)

	names := readTarNames(t, gz)
	require.Contains(t, names, "probectl_launcher.py")
	require.Contains(t, names, "probectl/core.py")
}

// TestAssembleUnixUncompressed verifies the plain-tar variant of the stub.
func TestAssembleUnixUncompressed(t *testing.T) {
	t.Parallel()

	stage := stageFixture(t)
	out := filepath.Join(t.TempDir(), "probectl")

	require.NoError(t, assembleForPlatform("linux", assembleSpec(false), stage, out))

	artifact, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(artifact), "tar -x -C")

	payload := extractUnixPayload(t, artifact)
	names := readTarNames(t, bytes.NewReader(payload))
	require.Contains(t, names, "probectl_launcher.py")
}

// TestAssembleWindows verifies the cmd stub and the certutil base64 block.
func TestAssembleWindows(t *testing.T) {
	t.Parallel()

	stage := stageFixture(t)
	out := filepath.Join(t.TempDir(), "probectl.cmd")

	require.NoError(t, assembleForPlatform("windows", assembleSpec(false), stage, out))

	artifact, err := os.ReadFile(out)
	require.NoError(t, err)

	text := string(artifact)
	require.True(t, strings.HasPrefix(text, "@echo off"))
	require.Contains(t, text, payloadBeginMarker)
	require.Contains(t, text, payloadEndMarker)

	begin := strings.Index(text, payloadBeginMarker) + len(payloadBeginMarker)
	end := strings.Index(text, payloadEndMarker)
	block := strings.NewReplacer("\r", "", "\n", "").Replace(text[begin:end])

	payload, err := base64.StdEncoding.DecodeString(block)
	require.NoError(t, err)

	names := readTarNames(t, bytes.NewReader(payload))
	require.Contains(t, names, "probectl/core.py")
}
