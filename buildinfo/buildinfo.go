// Package buildinfo provides build-time properties injected via ldflags:
//
//	go build -ldflags "-X github.com/nomis52/actividades/buildinfo.version=v1.2.0 \
//	    -X github.com/nomis52/actividades/buildinfo.gitCommit=$(git rev-parse HEAD)"
//
// When a property is not injected, Get falls back to the VCS stamp embedded
// by the Go toolchain.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// Properties holds build-time properties injected via ldflags.
type Properties struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
}

// Package-level variables for ldflags injection (unexported).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Get returns the current build properties.
func Get() Properties {
	p := Properties{
		Version:   version,
		BuildTime: buildTime,
		GitCommit: gitCommit,
		GoVersion: "unknown",
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		p = fromBuildInfo(p, info)
	}
	return p
}

func fromBuildInfo(p Properties, info *debug.BuildInfo) Properties {
	p.GoVersion = info.GoVersion
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if p.GitCommit == "unknown" {
				p.GitCommit = s.Value
			}
		case "vcs.time":
			if p.BuildTime == "unknown" {
				p.BuildTime = s.Value
			}
		}
	}
	return p
}

// String formats the properties for a -version flag.
func (p Properties) String() string {
	return fmt.Sprintf("actividades %s\nBuilt: %s\nCommit: %s\nGo: %s\n", p.Version, p.BuildTime, p.GitCommit, p.GoVersion)
}
