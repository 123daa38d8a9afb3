package main

import (
	"os"

	"github.com/go-delve/quicklook/cmd/dlv-ql/cmds"
	"github.com/go-delve/quicklook/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.QuickLookVersion.Build = Build
	}
	if err := cmds.New(false).Execute(); err != nil {
		os.Exit(1)
	}
}
