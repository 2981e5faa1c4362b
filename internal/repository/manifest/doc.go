// Package manifest persists the release record written next to a published
// disk image.
//
// The FileRepository stores and loads a release.Manifest as YAML on disk and
// exposes a Repository interface that the packager workflow depends on.
package manifest
