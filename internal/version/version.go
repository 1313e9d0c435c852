// Package version holds the build stamp of the pagesmith binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/pagesmith/internal/version.Version=v0.3.0".
var Version = "unknown"

// Build metadata, also set with -ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Resolved returns Version, falling back to the module version recorded by
// `go install` when no ldflags were given.
func Resolved() string {
	if Version != "unknown" && Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// String renders the one-line version banner.
func String() string {
	return fmt.Sprintf("pagesmith %s (commit %s, built %s)", Resolved(), GitCommit, BuildTime)
}
