// Package version carries build metadata injected via -ldflags.
package version

import "fmt"

// Version and GitSHA default to development values; release builds
// override them with -ldflags "-X ...".
var (
	Version = "dev"
	GitSHA  = "unknown"
)

// Summary returns the version, with the git SHA appended when known.
func Summary() string {
	if GitSHA == "" || GitSHA == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, GitSHA)
}
