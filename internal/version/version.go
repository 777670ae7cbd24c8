// Package version carries build identifiers stamped in by the linker.
package version

import (
	"fmt"
	"runtime"
)

// These variables are populated by the Go linker (LDFLAGS) at build time.
var (
	Version    = "dev"     // Default value if not built with LDFLAGS
	CommitHash = "unknown" // Default value
	BuildDate  = "unknown" // Default value
)

// String formats the build identifiers for `verdict version`.
func String() string {
	return fmt.Sprintf("verdict %s (commit %s, built %s, %s %s/%s)",
		Version, CommitHash, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
