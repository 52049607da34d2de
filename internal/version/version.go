// Package version holds build metadata set via ldflags.
package version

var (
	// Version is the semantic version, "dev" for local builds.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
)

// Full returns a human-readable version string.
func Full() string {
	if Version == "dev" {
		return "dev (commit: " + Commit + ")"
	}
	return Version + " (commit: " + Commit + ")"
}
