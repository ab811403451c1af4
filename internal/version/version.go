package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X github.com/r9s-ai/gemini-proxy/internal/version.Version=v0.1.0".
// Commit and BuildDate fall back to the VCS stamp go build embeds.
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromSettings(&info, bi.Settings)
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}
	return info
}

func fillFromSettings(info *Info, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gemini-proxy %s (%s)\n", i.Version, i.shortCommit())
	fmt.Fprintf(&b, "  built:    %s\n", i.BuildDate)
	fmt.Fprintf(&b, "  go:       %s %s", i.GoVersion, i.Platform)
	if i.Modified {
		b.WriteString("\n  tree:     modified")
	}
	return b.String()
}

// Short is the one-token form used in startup logs.
func Short() string {
	i := Get()
	if i.Commit == "unknown" {
		return i.Version
	}
	return i.Version + "+" + i.shortCommit()
}

func (i Info) shortCommit() string {
	if len(i.Commit) > 7 {
		return i.Commit[:7]
	}
	return i.Commit
}
