// Package manifest defines the bundle description written by the packager and
// consumed by the installer.
//
// It records the tool version, the artifact filename, SHA512 checksums of the
// output files and the native libraries that were collected.
package manifest
