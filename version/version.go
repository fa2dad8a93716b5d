// Package version holds build information for goasics.
// The variables are set at link time with -ldflags "-X".
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"

	// Commit is the short git commit SHA.
	Commit = "none"

	// Date is the build timestamp in RFC 3339 form.
	Date = "unknown"

	// GoVersion is the toolchain the binary was built with.
	GoVersion = runtime.Version()
)

// Info returns a one-line description of the build.
func Info() string {
	return fmt.Sprintf("goasics version %s (commit: %s, built: %s)", resolvedVersion(), Commit, Date)
}

// FullInfo is Info plus the Go version.
func FullInfo() string {
	return fmt.Sprintf("goasics version %s (commit: %s, built: %s, go: %s)", resolvedVersion(), Commit, Date, GoVersion)
}

// resolvedVersion falls back to the module version recorded by "go install" when
// no version was injected.
func resolvedVersion() string {
	if Version != "dev" {
		return Version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return Version
}
