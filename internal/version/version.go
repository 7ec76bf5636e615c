// Package version carries build metadata injected via ldflags:
//
//	go build -ldflags "-X git.home.luguber.info/inful/clientboot/internal/version.Version=v0.3.0"
package version

// Version is the released version, "unknown" for local builds.
var Version = "unknown"

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version.
func String() string {
	return "clientboot " + Version + " (commit " + GitCommit + ", built " + BuildTime + ")"
}
