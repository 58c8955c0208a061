package packager

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/probe-bundler/internal/config"
)

func writeLibrary(t *testing.T, root, pkg, name string) string {
	t.Helper()

	dir := filepath.Join(root, pkg)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("elf"), 0o644))

	return path
}

// TestLocateLibraries finds declared libraries under the search roots.
func TestLocateLibraries(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	capstonePath := writeLibrary(t, root, "capstone", "libcapstone.so.5")
	packPath := writeLibrary(t, root, "cmsis_pack_manager", "_cmsis_pack_manager.cpython-311.so")

	spec := &config.Spec{
		LibraryRoots: []string{root},
		Libraries: []config.NativeLibrary{
			{Name: "disassembler", Package: "capstone", Patterns: []string{"libcapstone*"}},
			{Name: "pack-manager", Package: "cmsis_pack_manager", Patterns: []string{"_cmsis_pack_manager*"}, Required: true},
		},
	}

	located, err := LocateLibraries(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, located, 2)
	require.Equal(t, capstonePath, located[0].Path)
	require.Equal(t, packPath, located[1].Path)
}

// TestLocateLibrariesMissingRequired aborts when the pack-manager library is absent.
func TestLocateLibrariesMissingRequired(t *testing.T) {
	t.Parallel()

	spec := &config.Spec{
		LibraryRoots: []string{t.TempDir()},
		Libraries: []config.NativeLibrary{
			{Name: "pack-manager", Package: "cmsis_pack_manager", Patterns: []string{"_cmsis_pack_manager*"}, Required: true},
		},
	}

	_, err := LocateLibraries(context.Background(), spec)
	require.ErrorIs(t, err, ErrLibraryNotFound)
}

// TestLocateLibrariesOptionalMissing skips absent optional libraries without error.
func TestLocateLibrariesOptionalMissing(t *testing.T) {
	t.Parallel()

	spec := &config.Spec{
		LibraryRoots: []string{t.TempDir()},
		Libraries: []config.NativeLibrary{
			{Name: "disassembler", Package: "capstone", Patterns: []string{"libcapstone*"}},
		},
	}

	located, err := LocateLibraries(context.Background(), spec)
	require.NoError(t, err)
	require.Empty(t, located)
}
