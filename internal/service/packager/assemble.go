package packager

import (
	"archive/tar"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"

	"github.com/klauspost/compress/gzip"

	"github.com/oshokin/probe-bundler/internal/config"
	"github.com/oshokin/probe-bundler/internal/manifest"
)

// offsetPlaceholder is replaced by the 1-based payload offset. Placeholder
// and replacement are the same width so the header length stays fixed.
const offsetPlaceholder = "@@OFFSET@@"

// unixStubTemplate is the POSIX launcher prepended to the payload. It
// extracts the archive into a temporary directory, hands control to the
// runtime and cleans up after the tool exits.
const unixStubTemplate = `#!/bin/sh
# {{.ToolName}} single-file bundle
BUNDLE_DIR="${TMPDIR:-/tmp}/{{.ToolName}}-bundle-$$"
mkdir -p "$BUNDLE_DIR" || exit 1
tail -c +@@OFFSET@@ "$0" | tar -x{{.TarFlags}} -C "$BUNDLE_DIR" || exit 1
"{{.Runtime}}" "$BUNDLE_DIR/{{.Script}}" "$@"
STATUS=$?
rm -rf "$BUNDLE_DIR"
exit $STATUS
`

// windowsStubTemplate carries the payload as a base64 block that certutil
// can decode. cmd.exe stops at exit /b, so the block is never executed.
const windowsStubTemplate = `@echo off
setlocal
set "BUNDLE_DIR=%TEMP%\{{.ToolName}}-bundle-%RANDOM%"
mkdir "%BUNDLE_DIR%" >nul 2>&1
certutil -decode "%~f0" "%BUNDLE_DIR%\payload.tar" >nul
tar -x{{.TarFlags}}f "%BUNDLE_DIR%\payload.tar" -C "%BUNDLE_DIR%"
"{{.Runtime}}" "%BUNDLE_DIR%\{{.Script}}" %*
set "STATUS=%ERRORLEVEL%"
rmdir /s /q "%BUNDLE_DIR%"
exit /b %STATUS%
`

const (
	payloadBeginMarker = "-----BEGIN CERTIFICATE-----"
	payloadEndMarker   = "-----END CERTIFICATE-----"
	base64LineWidth    = 64
)

//nolint:gochecknoglobals // Parsed once, read-only afterwards.
var (
	unixStub    = template.Must(template.New("unix-stub").Parse(unixStubTemplate))
	windowsStub = template.Must(template.New("windows-stub").Parse(windowsStubTemplate))
)

// stubData feeds the stub templates.
type stubData struct {
	ToolName string
	Runtime  string
	Script   string
	TarFlags string
}

// AssembleArtifact produces the single-file executable for the host platform
// from the staged payload directory.
func AssembleArtifact(spec *config.Spec, stageDir, outPath string) error {
	return assembleForPlatform(runtime.GOOS, spec, stageDir, outPath)
}

func assembleForPlatform(goos string, spec *config.Spec, stageDir, outPath string) error {
	payload, err := tarPayload(stageDir)
	if err != nil {
		return fmt.Errorf("archive payload: %w", err)
	}

	compressed := spec.CompressEnabled()
	if compressed {
		if payload, err = gzipPayload(payload); err != nil {
			return fmt.Errorf("compress payload: %w", err)
		}
	}

	data := stubData{
		ToolName: spec.ToolName,
		Runtime:  spec.Runtime,
		Script:   spec.Entry.ScriptName,
	}
	if compressed {
		data.TarFlags = "z"
	}

	var artifact []byte

	if goos == "windows" {
		artifact, err = windowsArtifact(data, payload)
	} else {
		artifact, err = unixArtifact(data, payload)
	}

	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(outPath), manifest.DefaultFileMode); err != nil {
		return err
	}

	return os.WriteFile(outPath, artifact, manifest.DefaultFileMode)
}

// unixArtifact renders the sh stub, patches the payload offset and appends
// the raw payload bytes.
func unixArtifact(data stubData, payload []byte) ([]byte, error) {
	var header bytes.Buffer
	if err := unixStub.Execute(&header, data); err != nil {
		return nil, err
	}

	// tail -c +N is 1-based; the replacement keeps the header length fixed.
	offset := fmt.Sprintf("%0*d", len(offsetPlaceholder), header.Len()+1)
	stub := strings.Replace(header.String(), offsetPlaceholder, offset, 1)

	return append([]byte(stub), payload...), nil
}

// windowsArtifact renders the cmd stub with CRLF line endings and appends
// the payload as a certutil-decodable base64 block.
func windowsArtifact(data stubData, payload []byte) ([]byte, error) {
	var header bytes.Buffer
	if err := windowsStub.Execute(&header, data); err != nil {
		return nil, err
	}

	var out bytes.Buffer

	out.WriteString(strings.ReplaceAll(header.String(), "\n", "\r\n"))
	out.WriteString(payloadBeginMarker + "\r\n")

	encoded := base64.StdEncoding.EncodeToString(payload)
	for len(encoded) > 0 {
		line := encoded
		if len(line) > base64LineWidth {
			line = encoded[:base64LineWidth]
		}

		out.WriteString(line + "\r\n")
		encoded = encoded[len(line):]
	}

	out.WriteString(payloadEndMarker + "\r\n")

	return out.Bytes(), nil
}

// tarPayload archives the staging directory with paths relative to its root.
func tarPayload(stageDir string) ([]byte, error) {
	files, err := listRelativeFiles(stageDir)
	if err != nil {
		return nil, err
	}

	var buffer bytes.Buffer

	writer := tar.NewWriter(&buffer)

	for _, rel := range files {
		if err = addTarEntry(writer, stageDir, rel); err != nil {
			return nil, err
		}
	}

	if err = writer.Close(); err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

func addTarEntry(writer *tar.Writer, stageDir, rel string) error {
	path := filepath.Join(stageDir, rel)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}

	header.Name = filepath.ToSlash(rel)

	if err = writer.WriteHeader(header); err != nil {
		return err
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}

	if _, err = io.Copy(writer, file); err != nil {
		_ = file.Close()

		return err
	}

	return file.Close()
}

func gzipPayload(payload []byte) ([]byte, error) {
	var buffer bytes.Buffer

	writer := gzip.NewWriter(&buffer)
	if _, err := writer.Write(payload); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}
