package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Spec describes a single bundle build: what tool is packaged, which
// dependencies it needs, which native libraries must be collected and how the
// final single-file executable is assembled.
type Spec struct {
	// ToolName is the name of the packaged command-line tool (and of the artifact).
	ToolName string `yaml:"tool_name"`
	// ToolVersion is the semantic version of the packaged tool.
	ToolVersion string `yaml:"tool_version"`
	// Runtime is the interpreter command used to launch the tool and to
	// install its requirements (defaults to python3).
	Runtime string `yaml:"runtime"`
	// Entry declares the module and callable the launcher script invokes.
	Entry EntryPoint `yaml:"entry_point"`
	// RequirementsFile is the dependency manifest installed before packaging.
	RequirementsFile string `yaml:"requirements_file"`
	// ExtraDependencies are packages installed in addition to the manifest
	// (the disassembly support package lives here).
	ExtraDependencies []string `yaml:"extra_dependencies"`
	// SystemPackages are OS-level packages installed before anything else.
	SystemPackages []string `yaml:"system_packages"`
	// Include lists file trees staged into the bundle payload.
	Include []string `yaml:"include"`
	// ExcludedModules are module directories skipped during staging
	// (GUI toolkits are not shipped in the console bundle).
	ExcludedModules []string `yaml:"excluded_modules"`
	// Libraries are the native dynamic libraries collected into the bundle.
	Libraries []NativeLibrary `yaml:"native_libraries"`
	// LibraryRoots are the directories searched for native libraries,
	// typically the runtime's installed package directories.
	LibraryRoots []string `yaml:"library_roots"`
	// OutputDir is where the final artifact and manifest are written.
	OutputDir string `yaml:"output_dir"`
	// WorkDir is the staging directory, recreated on every build.
	WorkDir string `yaml:"work_dir"`
	// Windowed disables console mode. The bundler only produces console
	// artifacts today; the flag exists so specs can state it explicitly.
	Windowed bool `yaml:"windowed"`
	// Compress toggles payload compression. When unset, compression is
	// enabled on every platform except Windows.
	Compress *bool `yaml:"compress"`
	// SmokeTest configures the post-build launch check.
	SmokeTest SmokeTest `yaml:"smoke_test"`
}

// EntryPoint declares the callable the synthesized launcher script executes.
type EntryPoint struct {
	// Module is the import path exposing the tool's main callable.
	Module string `yaml:"module"`
	// Callable is the function invoked by the launcher (defaults to main).
	Callable string `yaml:"callable"`
	// ScriptName is the generated launcher filename
	// (defaults to <tool_name>_launcher.py).
	ScriptName string `yaml:"script_name"`
}

// NativeLibrary identifies one native dynamic library to collect.
type NativeLibrary struct {
	// Name is the short label used in logs and the manifest.
	Name string `yaml:"name"`
	// Package is the subdirectory under a library root that carries the library.
	Package string `yaml:"package"`
	// Patterns are filename globs matched inside the package directory.
	// Listing patterns for every platform is fine; the first match wins.
	Patterns []string `yaml:"patterns"`
	// Required marks libraries whose absence aborts the build.
	Required bool `yaml:"required"`
}

// SmokeTest configures the post-build launch check of the artifact.
type SmokeTest struct {
	// Args are passed to the produced executable (defaults to --help).
	Args []string `yaml:"args"`
	// Timeout bounds the smoke-test process runtime.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultSpecFilename is the default filename for the bundle spec.
	DefaultSpecFilename = "probe-bundle.yaml"

	// DefaultRuntime is the interpreter used when the spec does not name one.
	DefaultRuntime = "python3"

	// DefaultOutputDir is where artifacts land when the spec does not say.
	DefaultOutputDir = "dist"

	// DefaultWorkDir is the staging directory used during assembly.
	DefaultWorkDir = "build"

	// DefaultSmokeTimeout bounds the post-build launch check.
	DefaultSmokeTimeout = 30 * time.Second

	// DefaultFilePermissions is the default file permission for spec files.
	DefaultFilePermissions = 0o600
)

var (
	// errSpecIsNotSet is returned when a nil spec is provided.
	errSpecIsNotSet = errors.New("bundle spec is not set")
	// errToolNameRequired is returned when the tool name is missing.
	errToolNameRequired = errors.New("tool name must be provided")
	// errEntryModuleRequired is returned when the entry-point module is missing.
	errEntryModuleRequired = errors.New("entry point module must be provided")
	// errSameOutputAndWorkDir is returned when output and work directories collide.
	errSameOutputAndWorkDir = errors.New("output and work directories must differ")
	// errLibraryIncomplete is returned when a native library entry lacks
	// a package directory or filename patterns.
	errLibraryIncomplete = errors.New("native library needs a package and at least one pattern")
)

// Load reads a bundle spec from the provided path and validates it.
func Load(path string) (*Spec, error) {
	if path == "" {
		path = DefaultSpecFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read bundle spec: %w", err)
	}

	var spec Spec
	if err := yaml.Unmarshal(contents, &spec); err != nil {
		return nil, fmt.Errorf("unmarshal bundle spec: %w", err)
	}

	if err := Validate(&spec); err != nil {
		return nil, err
	}

	return &spec, nil
}

// Save writes the spec to the provided path.
func Save(path string, spec *Spec) error {
	if spec == nil {
		return errSpecIsNotSet
	}

	if path == "" {
		path = DefaultSpecFilename
	}

	if err := Validate(spec); err != nil {
		return err
	}

	data, err := yaml.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshal bundle spec: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write bundle spec: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults in place.
func Validate(spec *Spec) error {
	if spec == nil {
		return errSpecIsNotSet
	}

	if spec.ToolName == "" {
		return errToolNameRequired
	}

	if spec.Entry.Module == "" {
		return errEntryModuleRequired
	}

	if spec.Runtime == "" {
		spec.Runtime = DefaultRuntime
	}

	if spec.Entry.Callable == "" {
		spec.Entry.Callable = "main"
	}

	if spec.Entry.ScriptName == "" {
		spec.Entry.ScriptName = spec.ToolName + "_launcher.py"
	}

	if spec.OutputDir == "" {
		spec.OutputDir = DefaultOutputDir
	}

	if spec.WorkDir == "" {
		spec.WorkDir = DefaultWorkDir
	}

	if filepath.Clean(spec.OutputDir) == filepath.Clean(spec.WorkDir) {
		return errSameOutputAndWorkDir
	}

	for i := range spec.Libraries {
		lib := &spec.Libraries[i]
		if lib.Package == "" || len(lib.Patterns) == 0 {
			return fmt.Errorf("%s: %w", lib.Name, errLibraryIncomplete)
		}

		if lib.Name == "" {
			lib.Name = lib.Package
		}
	}

	if len(spec.SmokeTest.Args) == 0 {
		spec.SmokeTest.Args = []string{"--help"}
	}

	if spec.SmokeTest.Timeout <= 0 {
		spec.SmokeTest.Timeout = DefaultSmokeTimeout
	}

	return nil
}

// CompressEnabled reports whether the payload should be compressed,
// applying the platform default when the spec does not decide.
func (s *Spec) CompressEnabled() bool {
	if s.Compress != nil {
		return *s.Compress
	}

	return runtime.GOOS != "windows"
}

// ArtifactName returns the platform filename of the final executable.
func (s *Spec) ArtifactName() string {
	if runtime.GOOS == "windows" {
		return s.ToolName + ".cmd"
	}

	return s.ToolName
}
