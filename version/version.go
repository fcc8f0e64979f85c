// Package version exposes build metadata for tracyctl.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the application version, set via ldflags.
	Version = "dev"
	// BuildDate is when the binary was built, set via ldflags.
	BuildDate string

	// Revision is the VCS revision recorded by the Go toolchain.
	Revision = getRevision(debug.ReadBuildInfo)
	// GoVersion is the Go version used to build.
	GoVersion = runtime.Version()
	// Platform is the GOOS/GOARCH target.
	Platform = runtime.GOOS + "/" + runtime.GOARCH
)

// String renders the metadata as a single line, as printed by
// "tracyctl version".
func String() string {
	s := fmt.Sprintf("tracyctl %s (revision %s, %s, %s)", Version, Revision, GoVersion, Platform)
	if BuildDate != "" {
		s += " built " + BuildDate
	}

	return s
}

func getRevision(read func() (*debug.BuildInfo, bool)) string {
	rev := "unknown"

	buildInfo, ok := read()
	if !ok {
		return rev
	}

	modified := false

	for _, v := range buildInfo.Settings {
		switch v.Key {
		case "vcs.revision":
			rev = v.Value
		case "vcs.modified":
			modified = v.Value == "true"
		}
	}

	if modified {
		return rev + "-dirty"
	}

	return rev
}
