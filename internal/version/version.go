package version

import "fmt"

// Set at build time with -ldflags "-X trustscan/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String renders the build metadata on three lines.
func String() string {
	return fmt.Sprintf("trustscan %s\ncommit: %s\nbuilt: %s\n", Version, Commit, BuildDate)
}
