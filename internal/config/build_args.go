package config

import (
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Overwritten at link time, e.g.
//
//	go build -ldflags "-X github.com/allaboutapps/integresql-client-go/internal/config.Commit=$(git rev-parse HEAD)"
var (
	ModuleName = "build.local/misses/ldflags"
	Commit     = ""
	BuildDate  = ""
)

// BuildArgs adds the build information of the running binary to e.
// Commit and BuildDate fall back to the VCS stamp of the Go toolchain if they were not injected.
func BuildArgs(e *zerolog.Event) *zerolog.Event {
	commit, date := Commit, BuildDate

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch {
			case setting.Key == "vcs.revision" && len(commit) == 0:
				commit = setting.Value
			case setting.Key == "vcs.time" && len(date) == 0:
				date = setting.Value
			}
		}
	}

	return e.Str("module", ModuleName).Str("commit", commit).Str("build_date", date)
}
