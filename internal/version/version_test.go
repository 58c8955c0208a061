package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestShortAndFull ensures version strings are populated and composed.
func TestShortAndFull(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
	require.Contains(t, Full(), "commit:")
}
