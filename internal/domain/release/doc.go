// Package release contains the core domain types of a packaging run.
//
// It defines the Stage state machine the workflow walks through, the Actor who
// produced a release and the Manifest recorded next to the published image.
package release
