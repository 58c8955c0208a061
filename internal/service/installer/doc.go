// Package installer applies a built bundle to a destination directory.
//
// It fetches the manifest and the artifact from a local or HTTP folder,
// verifies the SHA512 checksum, stops running instances of the tool and
// swaps the executable in place. A marker file guards against concurrent
// installs.
package installer
