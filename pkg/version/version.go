package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Version represents the current version of dlv-ql.
type Version struct {
	Major    string
	Minor    string
	Patch    string
	Metadata string
	Build    string
}

// QuickLookVersion is the current version of dlv-ql.
var QuickLookVersion = Version{
	Major: "0", Minor: "3", Patch: "0", Metadata: "",
	Build: "$Id$",
}

func (v Version) String() string {
	fixBuild(&v)
	ver := fmt.Sprintf("Version: %s.%s.%s", v.Major, v.Minor, v.Patch)
	if v.Metadata != "" {
		ver += "-" + v.Metadata
	}
	return fmt.Sprintf("%s\nBuild: %s", ver, v.Build)
}

var buildInfo = func() string {
	return ""
}

// BuildInfo returns the Go version and the modules dlv-ql was built with.
func BuildInfo() string {
	return fmt.Sprintf("%s\n%s", runtime.Version(), buildInfo())
}

var readBuildInfo = debug.ReadBuildInfo

func fixBuild(v *Version) {
	// Keep an explicit build id, replace the unexpanded git ident.
	if !strings.HasPrefix(v.Build, "$Id$") {
		return
	}

	info, ok := readBuildInfo()
	if !ok {
		return
	}

	for _, key := range []string{"vcs.revision", "gitrevision"} {
		for _, setting := range info.Settings {
			if setting.Key == key {
				v.Build = setting.Value
				return
			}
		}
	}
}
