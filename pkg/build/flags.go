// SPDX-License-Identifier: MIT
//
// Package build carries build metadata (name, version, commit, build time)
// embedded with -ldflags at compile time. Development builds without ldflags
// fall back to "dev" values instead of failing.
package build

// Populated by -ldflags during compilation, e.g.
//
//	-ldflags "-X opentune/pkg/build.buildVersion=v0.1.0"
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

type Flags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

var flags = &Flags{
	Name:        "opentune",
	Description: "Real-time audio graph engine with sample-accurate sequencing",
	Time:        "unknown",
	Commit:      "unknown",
	Version:     "dev",
}

// Initialize copies the ldflags values into the Flags struct, keeping the
// development fallbacks for anything unset. Call once early in startup.
func Initialize() {
	if buildName != "" {
		flags.Name = buildName
	}
	if buildTime != "" {
		flags.Time = buildTime
	}
	if buildCommit != "" {
		flags.Commit = buildCommit
	}
	if buildVersion != "" {
		flags.Version = buildVersion
	}
}

// GetFlags returns the current build information.
func GetFlags() *Flags {
	return flags
}
