// Package version holds the release version of the module's binaries.
package version

// Version is the current release. Overridden at build time with
// -ldflags "-X github.com/getpup/pupsourcing-hostselect/pkg/version.Version=...".
var Version = "0.1.0-dev"
