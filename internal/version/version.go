// Package version exposes build metadata set via -ldflags.
package version

import "fmt"

// Set with -ldflags "-X github.com/hed1ad/vitalguard/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Short returns the version string.
func Short() string {
	return Version
}

// Info returns build metadata as a map.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     Commit,
		"build_date": BuildDate,
	}
}

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("vitalguard %s (commit %s, built %s)", Version, Commit, BuildDate)
}
