package main

import "github.com/oshokin/probe-bundler/cmd/probe-packager/cmd"

func main() {
	cmd.Execute()
}
