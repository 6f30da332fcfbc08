package app

import (
	"cmp"
	"fmt"
	"runtime/debug"
)

// Release builds stamp these with
// -ldflags "-X github.com/heartmarshall/satstream-ledger/internal/app.Version=1.2.0".
// Commit and BuildTime left empty are read from the vcs settings the go
// tool embeds.
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Built     string `json:"built"`
	GoVersion string `json:"go_version"`
	Modified  bool   `json:"modified"`
}

// ReadBuildInfo combines the ldflags stamp with the embedded build info.
func ReadBuildInfo() BuildInfo {
	info, _ := debug.ReadBuildInfo()
	return buildInfoFrom(info)
}

func buildInfoFrom(info *debug.BuildInfo) BuildInfo {
	var vcsRev, vcsTime, goVersion string
	modified := false
	if info != nil {
		goVersion = info.GoVersion
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				vcsRev = s.Value
			case "vcs.time":
				vcsTime = s.Value
			case "vcs.modified":
				modified = s.Value == "true"
			}
		}
	}
	if len(vcsRev) > 12 {
		vcsRev = vcsRev[:12]
	}

	return BuildInfo{
		Version:   cmp.Or(Version, "dev"),
		Commit:    cmp.Or(Commit, vcsRev, "unknown"),
		Built:     cmp.Or(BuildTime, vcsTime, "unknown"),
		GoVersion: goVersion,
		Modified:  Commit == "" && modified,
	}
}

func (b BuildInfo) String() string {
	commit := b.Commit
	if b.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", b.Version, commit, b.Built)
}

// BuildVersion is the one-line version for the health endpoints and the
// startup log.
func BuildVersion() string {
	return ReadBuildInfo().String()
}
