// Package version exposes build information injected at link time.
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables injected via ldflags.
var (
	Release   = "dev"
	GitCommit = "unknown"
)

// Full returns the version string in the format "release (commit: sha)".
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Release, GitCommit)
}

// FullWithPlatform returns the version string with the runtime platform
// and Go version.
func FullWithPlatform() string {
	return fmt.Sprintf(
		"%s (commit: %s, %s/%s, %s)",
		Release, GitCommit, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	)
}
