// Package version carries build metadata, set with -ldflags -X at link
// time.
package version

import "fmt"

var (
	// Version is the release tag of the build.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String returns the metadata on one line.
func String() string {
	return fmt.Sprintf("coverage %s (%s, built %s)", Version, GitSHA, BuildTime)
}
