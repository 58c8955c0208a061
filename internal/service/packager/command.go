package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/probe-bundler/internal/config"
	"github.com/oshokin/probe-bundler/internal/logger"
	"github.com/oshokin/probe-bundler/internal/manifest"
)

// Options contains inputs for the packaging step.
type Options struct {
	// Spec is the validated bundle spec.
	Spec *config.Spec
}

// Result describes what the packaging step produced.
type Result struct {
	// ArtifactPath is the absolute or spec-relative path of the executable.
	ArtifactPath string
	// ManifestPath is the path of the written bundle manifest.
	ManifestPath string
	// StagedFiles are the payload files relative to the staging root.
	StagedFiles []string
	// Libraries are the native libraries that were collected.
	Libraries []LocatedLibrary
}

// packager holds the state of a single packaging run.
// It is unexported; callers should use Run, which encapsulates setup and validation.
type packager struct {
	spec     *config.Spec
	stageDir string
	located  []LocatedLibrary
}

var errSpecRequired = errors.New("bundle spec is required")

// Run executes the packaging workflow: locate native libraries, synthesize
// the entry-point script, stage the payload and assemble the single-file
// executable with its manifest. No artifact is written if any step fails.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "probe-packager")

	if opts == nil || opts.Spec == nil {
		return nil, errSpecRequired
	}

	if err := config.Validate(opts.Spec); err != nil {
		return nil, err
	}

	p := &packager{spec: opts.Spec}

	result, err := p.run(ctx)
	if err != nil {
		return nil, fmt.Errorf("packager failed: %w", err)
	}

	logger.InfoKV(ctx, "Packager completed successfully", "artifact", result.ArtifactPath)

	return result, nil
}

func (p *packager) run(ctx context.Context) (*Result, error) {
	if err := p.prepareDirectories(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	logger.Info(ctx, "Locating native libraries")

	located, err := LocateLibraries(ctx, p.spec)
	if err != nil {
		return nil, err
	}

	p.located = located

	logger.InfoKV(ctx, "Generating entry-point script", "script", p.spec.Entry.ScriptName)

	if _, err = GenerateEntryScript(p.spec, p.stageDir); err != nil {
		return nil, fmt.Errorf("generate entry script: %w", err)
	}

	logger.Info(ctx, "Staging bundle payload")

	staged, err := p.stageFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("stage files: %w", err)
	}

	logger.InfoKV(ctx, "Assembling artifact",
		"compressed", p.spec.CompressEnabled(), "files", len(staged))

	artifactPath := filepath.Join(p.spec.OutputDir, p.spec.ArtifactName())
	if err = AssembleArtifact(p.spec, p.stageDir, artifactPath); err != nil {
		return nil, fmt.Errorf("assemble artifact: %w", err)
	}

	manifestPath := filepath.Join(p.spec.OutputDir, manifest.Filename)
	if err = p.writeManifest(artifactPath, manifestPath); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	return &Result{
		ArtifactPath: artifactPath,
		ManifestPath: manifestPath,
		StagedFiles:  staged,
		Libraries:    p.located,
	}, nil
}

// prepareDirectories recreates the staging directory and ensures the output
// directory exists. Staging lives inside the work directory so a failed run
// leaves no partial artifact behind.
func (p *packager) prepareDirectories() error {
	p.stageDir = filepath.Join(p.spec.WorkDir, "stage")

	if err := os.RemoveAll(p.stageDir); err != nil {
		return err
	}

	if err := os.MkdirAll(p.stageDir, manifest.DefaultFileMode); err != nil {
		return err
	}

	return os.MkdirAll(p.spec.OutputDir, manifest.DefaultFileMode)
}

// writeManifest records the artifact checksum and collected libraries.
func (p *packager) writeManifest(artifactPath, manifestPath string) error {
	desc := manifest.NewDescription(p.spec.ToolVersion, p.spec.ArtifactName())

	checksum, err := manifest.FileChecksumBase64(artifactPath)
	if err != nil {
		return err
	}

	desc.Files[p.spec.ArtifactName()] = checksum

	for _, lib := range p.located {
		desc.Libraries[lib.Library.Name] = filepath.Base(lib.Path)
	}

	return desc.Save(manifestPath)
}
