// Package installer makes sure the build environment has the application
// package and the bundler tool before anything else runs.
package installer
