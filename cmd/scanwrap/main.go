// Command scanwrap runs nmap and turns its reports into per-host records.
package main

import (
	"github.com/anstrom/scanwrap/cmd/cli"
)

// Set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
