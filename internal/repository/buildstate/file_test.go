package buildstate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLoadMissing returns ErrNotFound before any build was recorded.
func TestLoadMissing(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "state.json"))

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

// TestSaveLoadRoundtrip ensures the record survives the JSON round trip.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "state.json"))

	record := &Record{
		ToolVersion: "0.36.0",
		Artifact:    "probectl",
		Checksum:    "c2Vjb25k",
		FinishedAt:  time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, repo.Save(context.Background(), record))

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, record, loaded)
}
