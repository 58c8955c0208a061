package buildstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oshokin/probe-bundler/internal/config"
)

// Record describes the last successful build.
type Record struct {
	// ToolVersion is the packaged tool version of that build.
	ToolVersion string `json:"tool_version"`
	// Artifact is the produced executable filename.
	Artifact string `json:"artifact"`
	// Checksum is the base64 SHA512 of the artifact.
	Checksum string `json:"checksum"`
	// FinishedAt is when the build completed.
	FinishedAt time.Time `json:"finished_at"`
}

// Repository defines persistence operations for the build record.
type Repository interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, record *Record) error
}

// FileRepository persists the build record to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON record.
	path string
	// mu protects concurrent access to the record file.
	mu sync.Mutex
}

// DefaultFilename is the default location of the build record.
const DefaultFilename = "probe-bundle-state.json"

// ErrNotFound is returned when no build has been recorded yet.
var ErrNotFound = errors.New("build record not found")

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	if path == "" {
		path = DefaultFilename
	}

	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the record from disk.
func (r *FileRepository) Load(_ context.Context) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read build record: %w", err)
	}

	var record Record
	if err = json.Unmarshal(contents, &record); err != nil {
		return nil, fmt.Errorf("decode build record: %w", err)
	}

	return &record, nil
}

// Save writes the record to disk.
func (r *FileRepository) Save(_ context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode build record: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write build record: %w", err)
	}

	return nil
}
