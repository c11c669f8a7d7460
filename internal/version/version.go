// Package version reports what binary is running: release, commit and the
// toolchain it was built with.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version and BuildTime are set with -ldflags "-X ...".
var (
	Version   = "dev"
	BuildTime = "unknown"
	// Commit overrides the VCS revision embedded by the go tool.
	Commit = ""
)

// String is the one-line banner printed by `vocalis version`.
func String() string {
	return fmt.Sprintf("vocalis version %s (commit %s, built %s, %s %s/%s)",
		Version, revision(), BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func revision() string {
	if Commit != "" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	return revisionFrom(info.Settings)
}

// revisionFrom picks vcs.revision (shortened) and marks dirty trees.
func revisionFrom(settings []debug.BuildSetting) string {
	rev, dirty := "", false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return "unknown"
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		rev += "-dirty"
	}
	return rev
}
