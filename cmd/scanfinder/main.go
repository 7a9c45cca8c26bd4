// Command scanfinder discovers reachable hosts in an address list and scans
// their most common ports with nmap.
package main

import "github.com/anstrom/scanfinder/cmd/cli"

// Build information, set by ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
