// Package builder orchestrates the full build pipeline: output cleaning,
// dependency installation, packaging, the smoke test and build recording.
// Every step is fail-fast; a non-zero result from any subprocess aborts the
// whole run.
package builder
