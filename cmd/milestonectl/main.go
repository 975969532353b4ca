// milestonectl drives the milestone service from the command line against
// the same store and provider the API uses.
package main

import (
	"os"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
