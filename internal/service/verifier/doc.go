// Package verifier checks the bundle the external bundler claims to have built.
//
// A zero exit status from the bundler is not trusted on its own: the bundle
// must exist, be non-empty, carry every declared data file and contain none
// of the excluded modules.
package verifier
