// Package settings provides build metadata, runtime configuration, and
// context helpers used across the ccs CLI and library packages.
package settings

import (
	"os"
	"path/filepath"
)

// CliBinaryName is the canonical binary name for this tool.
const CliBinaryName = "ccs"

// Default file names below the temporary directory.
const (
	DefaultTokenFileName = "carconnectivity.token"
	DefaultCacheFileName = "carconnectivity.cache"
)

// VersionInformation is populated at build time via ldflags and holds the
// commit hash, semantic version, and build timestamp of the running binary.
var VersionInformation = VersionInfo{
	Commit:       "unknown",
	BuildVersion: "v0.0.0-nightly",
	BuildTime:    "unknown",
}

// VersionInfo holds metadata about the build, including the commit hash,
// build version, and build timestamp.
type VersionInfo struct {
	Commit       string
	BuildVersion string
	BuildTime    string
}

// Run holds configuration settings for a single execution of the application.
type Run struct {
	MinLogLevel int8
	LogFormat   string
	HideRepeats bool
	ConfigFile  string
	TokenFile   string
	CacheFile   string
	NoColor     bool
	ExitOnError bool
}

// NewCliParams returns the defaults used by the CLI before flags are parsed.
func NewCliParams() *Run {
	return &Run{
		MinLogLevel: 2,
		LogFormat:   "json",
		TokenFile:   DefaultTokenFile(),
		CacheFile:   DefaultCacheFile(),
		NoColor:     false,
		ExitOnError: true,
	}
}

// DefaultTokenFile is where tokens are kept unless --tokenfile says otherwise.
func DefaultTokenFile() string {
	return filepath.Join(os.TempDir(), DefaultTokenFileName)
}

// DefaultCacheFile is where snapshots are kept unless --cachefile says otherwise.
func DefaultCacheFile() string {
	return filepath.Join(os.TempDir(), DefaultCacheFileName)
}
