// Package version holds build-time metadata injected via -ldflags.
package version

// Version, Commit, and BuildDate are overridden at build time via
// -ldflags "-X github.com/yiannist/clusterfit/pkg/version.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)
