package main

import "github.com/oshokin/probe-bundler/cmd/probe-builder/cmd"

func main() {
	cmd.Execute()
}
