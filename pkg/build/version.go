package build

import (
	"fmt"
	"runtime/debug"
)

var (
	// version is the built version.
	// Set with ldflags via -ldflags="-X github.com/claimhub/search-service/pkg/build.version=v{{.Version}}".
	version string
	// Version is the full version string, including the vcs revision.
	Version string
	// UserAgent is the user agent used for HTTP requests
	UserAgent string
)

// Default version if not set by ldflags
const defaultVersion string = "v0.0.0"

func init() {
	if version == "" {
		version = defaultVersion
	}
	Version = fmt.Sprintf("%s-%s", version, revision())
	UserAgent = fmt.Sprintf("search-service/%s", Version)
}

func revision() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				if len(setting.Value) > 7 {
					return setting.Value[:7]
				}
				return setting.Value
			}
		}
	}
	return "unknown"
}
