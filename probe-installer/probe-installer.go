package main

import "github.com/oshokin/probe-bundler/cmd/probe-installer/cmd"

func main() {
	cmd.Execute()
}
