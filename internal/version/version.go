// Package version carries build identification, populated via -ldflags.
package version

var (
	// Version is the application release version
	Version = "dev"
	// GitSHA is the git commit SHA of the build
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)
