// Package packager assembles the single-file executable.
//
// It locates the declared native dynamic libraries, synthesizes the
// entry-point launcher script, stages the payload (excluding GUI toolkit
// modules) and writes a self-extracting artifact plus a checksum manifest.
// A missing required library aborts the run before any artifact is written.
package packager
