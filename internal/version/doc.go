// Package version exposes build metadata for rwb-release.
//
// Version, Commit and BuildTime are injected via Go ldflags. The version is also
// recorded in every release manifest so a disk image can be traced back to the
// tool that produced it.
package version
