// Package tools provides the subprocess runner used by build steps.
//
// The CommandRunner interface lets services swap the real os/exec-backed
// runner for a scripted fake in tests.
package tools
