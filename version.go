package main

import (
	"fmt"
	"runtime/debug"
)

var (
	// Set at build time via go build -ldflags
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// buildStamp returns the commit and build time, preferring ldflags values over
// the VCS stamp the go tool embeds
func buildStamp() (commit, built string) {
	commit, built = GitCommit, BuildTime
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" && len(s.Value) >= 7 {
					commit = s.Value[:7]
				}
			case "vcs.time":
				if built == "" {
					built = s.Value
				}
			}
		}
	}
	if commit == "" {
		commit = "unknown"
	}
	if built == "" {
		built = "unknown"
	}
	return commit, built
}

// VersionString is the line printed by the version command and the serve banner
func VersionString() string {
	commit, built := buildStamp()
	return fmt.Sprintf("tagpipe %s (commit %s, built %s)", Version, commit, built)
}
