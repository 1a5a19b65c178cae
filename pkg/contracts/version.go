// Package contracts holds the shared data shapes and version identity of the
// module. Domain types live in the domain subpackage.
package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the current version of the application.
	Version = "1.0.0"

	// ReportFormatVersion is the version of the batch report JSON shape.
	ReportFormatVersion = "v1"
)

// Set at build time through ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo bundles everything a support request needs to identify a build.
type VersionInfo struct {
	Version      string `json:"version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	ReportFormat string `json:"report_format"`
}

// GetVersionInfo returns the build identity of the running binary.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		ReportFormat: ReportFormatVersion,
	}
}

// GetVersionString returns the one-line version banner.
func GetVersionString() string {
	return fmt.Sprintf("MomentTransfer v%s (%s, %s)", Version, GitCommit, BuildTime)
}
