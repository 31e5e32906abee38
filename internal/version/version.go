package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/replwin"

// buildVersion is set via -ldflags "-X pkt.systems/replwin/internal/version.buildVersion=...".
var buildVersion = ""

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info describes the running binary.
type Info struct {
	Module   string
	Version  string
	Revision string
	Dirty    bool
	Go       string
}

// String renders "module version (go)" for version output and banners.
func (i Info) String() string {
	v := i.Version
	if i.Dirty {
		v += "+dirty"
	}
	return fmt.Sprintf("%s %s (%s)", i.Module, v, i.Go)
}

// Get collects version details from the linker flag and build info.
func Get() Info {
	info := Info{Module: defaultModule, Version: "v0.0.0-unknown", Go: runtime.Version()}
	bi, ok := readBuildInfo()
	if ok {
		if path := strings.TrimSpace(bi.Main.Path); path != "" {
			info.Module = path
		}
		vcs := readVCS(bi)
		info.Revision = vcs.revision
		info.Dirty = vcs.modified
		if v := strings.TrimSpace(bi.Main.Version); v != "" && v != "(devel)" {
			info.Version = v
		} else if v := vcs.pseudoVersion(); v != "" {
			info.Version = v
		}
	}
	if v := strings.TrimSpace(buildVersion); v != "" {
		info.Version = v
	}
	if strings.HasSuffix(info.Version, "+dirty") {
		info.Version = strings.TrimSuffix(info.Version, "+dirty")
		info.Dirty = true
	}
	return info
}

// Current returns the best available version string without dirty suffix.
func Current() string {
	return Get().Version
}

// Module returns the module path from build info when available.
func Module() string {
	return Get().Module
}

type vcsInfo struct {
	revision string
	time     time.Time
	modified bool
}

func readVCS(bi *debug.BuildInfo) vcsInfo {
	var out vcsInfo
	if bi == nil {
		return out
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.revision = setting.Value
		case "vcs.time":
			if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				out.time = parsed
			}
		case "vcs.modified":
			out.modified = setting.Value == "true"
		}
	}
	return out
}

// pseudoVersion builds a Go style pseudo version from the VCS stamp.
func (v vcsInfo) pseudoVersion() string {
	if v.revision == "" || v.time.IsZero() {
		return ""
	}
	rev := v.revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return "v0.0.0-" + v.time.UTC().Format("20060102150405") + "-" + rev
}
