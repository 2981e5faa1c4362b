// Package diskimage stages a verified bundle and turns it into the
// distributable disk image.
//
// Staging copies the bundle next to an Applications symlink in a fresh
// directory, the Assembler hands that directory to hdiutil, and Publish moves
// the freshly created image over the fixed, versioned output path in one
// atomic replace, so a failed run never leaves a half-written image there.
package diskimage
