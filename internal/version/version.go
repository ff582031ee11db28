// Package version holds build-time version information.
package version

// Set at build time via -ldflags, e.g.
// -X github.com/hazz-dev/marinemon/internal/version.Version=v1.1.0
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
