// Package packager runs the release workflow that turns the project tree into
// a single distributable disk image.
//
// The workflow installs the runtime package and the bundler tool, cleans the
// build output, builds and verifies the bundle, stages it next to an
// Applications link, creates the image and publishes it at its fixed
// versioned path. Any failing step aborts the run. The staging directory is
// released on every exit path and a YAML manifest is written next to the
// published image.
package packager
