package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Set at build time via go build -ldflags "-X main.Version=..."
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// buildInfo describes the running binary
type buildInfo struct {
	Version  string
	Commit   string
	Built    string
	Modified bool
	Go       string
}

// currentBuild prefers ldflags values and falls back to the VCS stamp the Go
// toolchain embeds in module builds.
func currentBuild() buildInfo {
	info := buildInfo{Version: Version, Commit: GitCommit, Built: BuildTime, Go: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.fill(bi.Settings)
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.Built == "" {
		info.Built = "unknown"
	}
	return info
}

func (b *buildInfo) fill(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "" {
				b.Commit = s.Value
				if len(b.Commit) > 7 {
					b.Commit = b.Commit[:7]
				}
			}
		case "vcs.time":
			if b.Built == "" {
				b.Built = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
}

// String returns the one-line form used by --version and startup logs
func (b buildInfo) String() string {
	commit := b.Commit
	if b.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("blockstream v%s (commit: %s, built: %s)", b.Version, commit, b.Built)
}

// Details returns the multi-line form printed by the version command
func (b buildInfo) Details() string {
	return fmt.Sprintf("blockstream v%s\nCommit: %s\nBuild Time: %s\nModified: %t\nGo: %s",
		b.Version, b.Commit, b.Built, b.Modified, b.Go)
}
