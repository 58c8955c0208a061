// Package deps implements the dependency installation step of the build
// pipeline: system packages first, then the requirements manifest, then any
// extra named packages. The step is fail-fast with no retries.
package deps
