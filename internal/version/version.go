// Package version exposes build metadata injected via ldflags.
package version

//nolint:revive // Set via -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String formats the build metadata for startup logs.
func String() string {
	return Version + " (" + Commit + ", " + BuildDate + ")"
}
