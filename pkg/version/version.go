// Package version reports build information injected with -ldflags.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time, e.g.
//
//	go build -ldflags "-X github.com/carbonledger/esgscan/pkg/version.version=v1.2.0"
//
//nolint:gochecknoglobals // link-time variables
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// GetVersion returns the release version. Unreleased builds installed with
// go install report their module version instead of "dev".
func GetVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

// GetGitCommit returns the commit the binary was built from.
func GetGitCommit() string { return gitCommit }

// GetBuildDate returns the build timestamp.
func GetBuildDate() string { return buildDate }

// String returns the long version line shown by --version.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", GetVersion(), gitCommit, buildDate)
}
