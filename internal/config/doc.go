// Package config defines the bundle spec consumed by the builder and the
// packager and provides helpers to load, validate and save it in YAML format.
//
// The Spec type declares the packaged tool, its entry point, the dependency
// manifests and the native libraries collected into the final artifact.
package config
