// Package version holds build-time version info injected via ldflags.
//
//	go build -ldflags "-X github.com/NicolasHaas/roomchat/pkg/version.tag=v1.0.0
//	  -X github.com/NicolasHaas/roomchat/pkg/version.commit=abc1234
//	  -X github.com/NicolasHaas/roomchat/pkg/version.date=2026-01-01"
//
// Without ldflags the VCS revision recorded by the Go toolchain is used when present.
package version

import "runtime/debug"

var (
	tag    = ""
	commit = ""
	date   = ""
)

// Info describes the running build.
type Info struct {
	Tag    string
	Commit string
	Date   string
}

// Get returns the build info, falling back to the embedded VCS settings.
func Get() Info {
	info := Info{Tag: tag, Commit: commit, Date: date}
	if info.Commit != "" {
		return info
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.Commit = shortSHA(s.Value)
			case "vcs.time":
				if info.Date == "" {
					info.Date = s.Value
				}
			}
		}
	}
	return info
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// String returns the tag, else the commit, else "dev".
func (i Info) String() string {
	switch {
	case i.Tag != "":
		return i.Tag
	case i.Commit != "":
		return i.Commit
	default:
		return "dev"
	}
}

// Full returns "tag (commit) built date" with the missing parts left out.
func (i Info) Full() string {
	s := i.String()
	if i.Tag != "" && i.Commit != "" {
		s += " (" + i.Commit + ")"
	}
	if i.Date != "" && s != "dev" {
		s += " built " + i.Date
	}
	return s
}

// String returns the version of the running build.
func String() string { return Get().String() }

// Full returns the long version of the running build.
func Full() string { return Get().Full() }
