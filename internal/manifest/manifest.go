package manifest

import (
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	// Ensure SHA512 is available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// Filename stores the bundle description written next to the artifact.
	Filename = "probe-bundle-manifest.yaml"

	// DefaultFileMode is used when producing artifacts for distribution.
	DefaultFileMode os.FileMode = 0o755

	// DefaultChecksumFunction is used to calculate artifact file hashes.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512

	// defaultMapCapacity is the default initial capacity for maps.
	defaultMapCapacity = 16
)

var errHashUnavailable = errors.New("hash function unavailable")

// Description contains metadata about a produced bundle.
type Description struct {
	// VersionNumber is the semantic version of the packaged tool.
	VersionNumber string `yaml:"version"`
	// Artifact is the filename of the single-file executable.
	Artifact string `yaml:"artifact"`
	// Files maps output filenames to their base64-encoded checksums.
	Files map[string]string `yaml:"files"`
	// Libraries maps native library names to the bundled filenames.
	Libraries map[string]string `yaml:"libraries"`
}

// NewDescription produces a Description initialized with defaults.
func NewDescription(version, artifact string) *Description {
	return &Description{
		VersionNumber: version,
		Artifact:      artifact,
		Files:         make(map[string]string, defaultMapCapacity),
		Libraries:     make(map[string]string, defaultMapCapacity),
	}
}

// GetFileChecksum returns checksum bytes for a file using DefaultChecksumFunction.
func GetFileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// FileChecksumBase64 returns the base64 form stored in the manifest.
func FileChecksumBase64(path string) (string, error) {
	checksum, err := GetFileChecksum(path)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(checksum), nil
}

// Save writes the description as YAML to the provided path.
func (d *Description) Save(path string) error {
	contents, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), contents, DefaultFileMode); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// Load reads a description from the provided path.
func Load(path string) (*Description, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return Parse(contents)
}

// Parse decodes a description from raw YAML.
func Parse(contents []byte) (*Description, error) {
	var desc Description
	if err := yaml.Unmarshal(contents, &desc); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	return &desc, nil
}
