// Package version holds build-time metadata stamped in via -ldflags.
package version

// Version, BuildTime, and Commit are overridden at build time with
// -ldflags "-X github.com/photon-img/photon/internal/version.Version=...".
var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"
)
