// Package version provides version information for the poster-oracle application.
package version

// Version is the release of the poster-oracle application.
const Version = "0.3.0"

// Commit is the source revision, set at build time:
//
//	go build -ldflags "-X github.com/StrathCole/poster-oracle/pkg/version.Commit=$(git rev-parse --short HEAD)"
var Commit = "unknown"

// AgentString returns the User-Agent sent to upstream services.
// Format: poster-oracle/v{version}
func AgentString() string {
	return "poster-oracle/v" + Version
}
