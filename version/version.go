// Package version carries build metadata stamped in with -ldflags:
//
//	go build -ldflags "-X github.com/teranos/apruver/version.Version=v1.2.0 \
//	  -X github.com/teranos/apruver/version.CommitHash=$(git rev-parse HEAD)"
package version

import (
	"fmt"
	"runtime"
)

var (
	// CommitHash is the revision apruver was built from
	CommitHash = "dev"

	// BuildTime is the build timestamp, RFC 3339 by convention
	BuildTime = "unknown"

	// Version is the release tag, "dev" for untagged builds
	Version = "dev"
)

// Info contains version and build information
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the current version information
func Get() Info {
	return Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a human-readable version string
func (i Info) String() string {
	return fmt.Sprintf("apruver %s (commit %s, built %s)", i.Version, i.Short(), i.BuildTime)
}

// Short returns the abbreviated commit hash
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}

// UserAgent identifies apruver to the node and the webhook, e.g. "apruver/v1.2.0 (3f2a9c1)"
func UserAgent() string {
	i := Get()
	return fmt.Sprintf("apruver/%s (%s)", i.Version, i.Short())
}
