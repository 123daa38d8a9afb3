package version

import (
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuildInfo(t *testing.T, info *debug.BuildInfo) {
	old := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	t.Cleanup(func() { readBuildInfo = old })
}

func TestVersionString(t *testing.T) {
	withBuildInfo(t, nil)
	v := Version{Major: "1", Minor: "2", Patch: "3", Metadata: "rc1", Build: "abc"}
	assert.Equal(t, "Version: 1.2.3-rc1\nBuild: abc", v.String())
}

func TestVersionBuildFromVCS(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "gitrevision", Value: "old"},
		{Key: "vcs.revision", Value: "deadbeef"},
	}})
	v := Version{Major: "0", Minor: "1", Patch: "0", Build: "$Id$"}
	assert.Equal(t, "Version: 0.1.0\nBuild: deadbeef", v.String())

	withBuildInfo(t, &debug.BuildInfo{Settings: []debug.BuildSetting{{Key: "gitrevision", Value: "old"}}})
	assert.Equal(t, "Version: 0.1.0\nBuild: old", v.String())
}

func TestBuildInfo(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/go-delve/quicklook", Version: "(devel)"},
		Deps: []*debug.Module{
			{Path: "github.com/spf13/cobra", Version: "v1.1.3", Sum: "h1:x"},
			{Path: "github.com/old/dep", Version: "v1.0.0", Replace: &debug.Module{Path: "../dep"}},
		},
	})
	info := BuildInfo()
	assert.True(t, strings.Contains(info, " mod\tgithub.com/go-delve/quicklook\t(devel)\t"))
	assert.True(t, strings.Contains(info, " dep\tgithub.com/spf13/cobra\tv1.1.3\th1:x\n"))
	assert.True(t, strings.Contains(info, "\t=> ../dep\t\t\n"))

	withBuildInfo(t, nil)
	assert.True(t, strings.HasSuffix(BuildInfo(), "\nnot built in module mode"))
}
