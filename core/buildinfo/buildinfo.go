// Package buildinfo reports the version of the running binary.
//
// Release builds set the variables with -ldflags:
//
//	-X 'github.com/m3rciful/ticketbot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/ticketbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/ticketbot/core/buildinfo.Date=2025-08-30T12:00:00Z'
//
// Otherwise the commit and date come from the VCS stamp of the Go toolchain, when present.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the release tag, or "dev".
	Version = "dev"
	// Commit is the short source revision.
	Commit = "local"
	// Date is the build or commit time in RFC3339.
	Date = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "local" && len(s.Value) >= 7 {
				Commit = s.Value[:7]
			}
		case "vcs.time":
			if Date == "" {
				Date = s.Value
			}
		}
	}
}

// String formats the version for humans, e.g. "v1.2.3 (git: abcdef0)".
func String() string {
	if Commit == "" {
		return Version
	}
	return fmt.Sprintf("%s (git: %s)", Version, Commit)
}
