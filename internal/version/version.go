// Package version holds build-time version information for the studykit
// binary. The variables are populated at build time via -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/studykit-go/internal/version.Version=v0.3.0 \
//	                    -X github.com/54b3r/studykit-go/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/studykit-go/internal/version.BuildDate=2026-01-01"
//
// Builds without ldflags report "dev" / "unknown".
package version

import "fmt"

// Version is the semantic version of the binary (e.g. "v1.2.3").
var Version = "dev"

// Commit is the short git SHA of the commit the binary was built from.
var Commit = "unknown"

// BuildDate is the UTC date the binary was built (RFC3339 format).
var BuildDate = "unknown"

// String returns a single-line description of the build.
func String() string {
	return fmt.Sprintf("studykit %s (commit %s, built %s)", Version, Commit, BuildDate)
}
