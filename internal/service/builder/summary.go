package builder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"

	"github.com/oshokin/probe-bundler/internal/manifest"
	"github.com/oshokin/probe-bundler/internal/service/packager"
)

// checksumPreviewLength keeps the summary table readable.
const checksumPreviewLength = 16

// printSummary renders a table of the build outputs.
// Header rows go through Append, matching the tablewriter v1 API.
func (b *builder) printSummary(result *packager.Result) {
	table := tablewriter.NewWriter(os.Stdout)

	_ = table.Append([]string{"FILE", "SIZE", "SHA512"})

	for _, path := range []string{result.ArtifactPath, result.ManifestPath} {
		_ = table.Append(summaryRow(path))
	}

	_ = table.Render()
}

// summaryRow builds one table row; errors degrade to placeholders because
// the summary is informational only.
func summaryRow(path string) []string {
	name := filepath.Base(path)

	size := "?"
	if info, err := os.Stat(path); err == nil {
		size = fmt.Sprintf("%d", info.Size())
	}

	checksum := "?"
	if encoded, err := manifest.FileChecksumBase64(path); err == nil {
		if len(encoded) > checksumPreviewLength {
			encoded = encoded[:checksumPreviewLength] + "..."
		}

		checksum = encoded
	}

	return []string{name, size, checksum}
}
