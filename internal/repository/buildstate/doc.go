// Package buildstate persists the last successful build as a small JSON
// record so subsequent builds can report version upgrades and downgrades.
package buildstate
