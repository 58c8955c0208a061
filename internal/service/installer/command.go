package installer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/probe-bundler/internal/logger"
	"github.com/oshokin/probe-bundler/internal/manifest"
)

var (
	errInstallerAlreadyRunning = errors.New("the installer is already running")
	errSourceRequired          = errors.New("install source must be provided")
	errDestinationRequired     = errors.New("install destination must be provided")
	errNoArtifactChecksum      = errors.New("checksum missing for artifact")
	errBadHTTPStatus           = errors.New("unexpected http status")
)

// Options are inputs accepted by the installer entry point.
type Options struct {
	// Source is a local folder or HTTP folder holding the manifest and artifact.
	Source string
	// Destination is the directory the artifact is installed into.
	Destination string
}

// runner holds the mutable state for a single install execution.
// It is intentionally unexported; call Run from callers.
type runner struct {
	source             string
	destination        string
	description        *manifest.Description
	temporaryDirectory string
}

// Run executes the install lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "probe-installer")

	ins, err := newRunner(ctx, opts)
	if err != nil {
		// The marker may belong to another install; leave it alone.
		return err
	}

	defer ins.cleanup(ctx)

	if err = ins.run(ctx); err != nil {
		logger.ErrorKV(ctx, "Install failed", "error", err)
		return err
	}

	logger.Info(ctx, "Install completed")

	return nil
}

// newRunner validates inputs and writes a marker to avoid concurrent runs.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	if opts == nil || opts.Source == "" {
		return &runner{}, errSourceRequired
	}

	if opts.Destination == "" {
		return &runner{}, errDestinationRequired
	}

	if IsInstallerRunningNow(ctx) {
		return &runner{}, errInstallerAlreadyRunning
	}

	marker, err := os.Create(MarkerFilename)
	if err != nil {
		return &runner{}, err
	}

	if err = marker.Close(); err != nil {
		return &runner{}, err
	}

	return &runner{
		source:      opts.Source,
		destination: opts.Destination,
	}, nil
}

// run executes the workflow:
// 1) Fetch the bundle manifest.
// 2) Download the artifact into a temporary directory.
// 3) Terminate running instances of the tool.
// 4) Apply the artifact with checksum verification.
func (r *runner) run(ctx context.Context) error {
	logger.InfoKV(ctx, "Fetching bundle manifest", "source", r.source)

	if err := r.fetchManifest(ctx); err != nil {
		return fmt.Errorf("fetch manifest: %w", err)
	}

	artifact := r.description.Artifact

	logger.InfoKV(ctx, "Downloading artifact", "artifact", artifact)

	downloaded, err := r.fetchArtifact(ctx, artifact)
	if err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}

	logger.InfoKV(ctx, "Stopping running instances", "executable", artifact)

	if err = terminateProcessByName(artifact); err != nil {
		return fmt.Errorf("terminate tool processes: %w", err)
	}

	logger.InfoKV(ctx, "Applying artifact", "destination", r.destination)

	if err = r.applyArtifact(artifact, downloaded); err != nil {
		return fmt.Errorf("apply artifact: %w", err)
	}

	return nil
}

// fetchManifest loads and parses the manifest from the source folder.
func (r *runner) fetchManifest(ctx context.Context) error {
	data, err := r.fetchFile(ctx, manifest.Filename)
	if err != nil {
		return err
	}

	desc, err := manifest.Parse(data)
	if err != nil {
		return err
	}

	r.description = desc

	return nil
}

// fetchArtifact downloads the artifact into a temporary directory and
// returns the local path.
func (r *runner) fetchArtifact(ctx context.Context, artifact string) (string, error) {
	data, err := r.fetchFile(ctx, artifact)
	if err != nil {
		return "", err
	}

	temporaryDirectory, err := os.MkdirTemp("", "probe-bundle-installer-")
	if err != nil {
		return "", err
	}

	r.temporaryDirectory = temporaryDirectory

	localPath := filepath.Join(temporaryDirectory, artifact)
	if err = os.WriteFile(localPath, data, manifest.DefaultFileMode); err != nil {
		return "", err
	}

	return localPath, nil
}

// fetchFile reads one file from the source, which is either an HTTP folder
// or a local directory.
func (r *runner) fetchFile(ctx context.Context, fileName string) ([]byte, error) {
	if isHTTPSource(r.source) {
		return r.fetchFileHTTP(ctx, fileName)
	}

	return os.ReadFile(filepath.Clean(filepath.Join(r.source, fileName)))
}

// fetchFileHTTP fetches a file from the HTTP source folder.
func (r *runner) fetchFileHTTP(ctx context.Context, fileName string) ([]byte, error) {
	sourceURL, err := url.Parse(r.source)
	if err != nil {
		return nil, err
	}

	// Use path.Join to normalize duplicate slashes when composing the URL path.
	sourceURL.Path = path.Join(sourceURL.Path, fileName)
	finalURL := sourceURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", finalURL, response.Status, errBadHTTPStatus)
	}

	return io.ReadAll(response.Body)
}

// applyArtifact verifies the manifest checksum and applies the downloaded
// file into the destination atomically.
func (r *runner) applyArtifact(artifact, downloadedPath string) error {
	encodedChecksum, ok := r.description.Files[artifact]
	if !ok {
		return fmt.Errorf("%s: %w", artifact, errNoArtifactChecksum)
	}

	checksum, err := base64.StdEncoding.DecodeString(encodedChecksum)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Clean(downloadedPath))
	if err != nil {
		return err
	}

	if err = os.MkdirAll(r.destination, manifest.DefaultFileMode); err != nil {
		return err
	}

	targetPath := filepath.Join(r.destination, artifact)
	if _, err = os.Stat(targetPath); err != nil && os.IsNotExist(err) {
		if _, err = os.Create(targetPath); err != nil {
			return err
		}
	}

	options := goupdate.Options{
		TargetPath: targetPath,
		TargetMode: manifest.DefaultFileMode,
		Checksum:   checksum,
		Hash:       manifest.DefaultChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return err
	}

	oldPath := targetPath + ".old"
	if _, err = os.Stat(oldPath); err == nil {
		_ = os.Remove(oldPath)
	}

	return nil
}

// isHTTPSource reports whether the source is an HTTP(S) folder URL.
func isHTTPSource(source string) bool {
	lowered := strings.ToLower(source)

	return strings.HasPrefix(lowered, "http://") || strings.HasPrefix(lowered, "https://")
}

// cleanup removes temporary artifacts and the running marker.
func (r *runner) cleanup(ctx context.Context) {
	if _, err := os.Stat(MarkerFilename); err == nil {
		_ = os.Remove(MarkerFilename)
	}

	if r.temporaryDirectory != "" {
		if _, err := os.Stat(r.temporaryDirectory); err == nil {
			_ = os.RemoveAll(r.temporaryDirectory)
		}
	}

	logger.Info(ctx, "The installer has been stopped")
}
