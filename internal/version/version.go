package version

import (
	"fmt"
	"runtime/debug"
)

// These can be set at build time via ldflags:
//
//	go build -ldflags="-X github.com/wclark/autoprov/internal/version.Version=v1.1.0 \
//	                   -X github.com/wclark/autoprov/internal/version.Commit=abc123"
var (
	// Version is the semantic version of the application
	Version = ""
	// Commit is the git commit hash
	Commit = ""
)

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" && Commit == "" {
					Commit = setting.Value
					if len(Commit) > 7 {
						Commit = Commit[:7]
					}
				}
			}
		}
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
