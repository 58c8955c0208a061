package packager

import (
	"bytes"
	"os"
	"path/filepath"
	"text/template"

	"github.com/oshokin/probe-bundler/internal/config"
	"github.com/oshokin/probe-bundler/internal/manifest"
)

// entryScriptTemplate is the synthetic launcher handed to the runtime.
// It mirrors what the tool's installed package would expose as its
// console entry point.
const entryScriptTemplate = `import sys

from {{.Module}} import {{.Callable}}

if __name__ == "__main__":
    sys.exit({{.Callable}}())
`

//nolint:gochecknoglobals // Parsed once, read-only afterwards.
var entryTemplate = template.Must(template.New("entrypoint").Parse(entryScriptTemplate))

// GenerateEntryScript renders the launcher script into dir and returns its path.
func GenerateEntryScript(spec *config.Spec, dir string) (string, error) {
	var rendered bytes.Buffer
	if err := entryTemplate.Execute(&rendered, spec.Entry); err != nil {
		return "", err
	}

	path := filepath.Join(dir, spec.Entry.ScriptName)
	if err := os.WriteFile(path, rendered.Bytes(), manifest.DefaultFileMode); err != nil {
		return "", err
	}

	return path, nil
}
