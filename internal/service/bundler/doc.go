// Package bundler turns a bundle descriptor into an application bundle by
// delegating to an external Python bundler.
//
// Two variants exist: PyInstaller, driven by a generated .spec file, and
// py2app, driven by a generated setup script. Both are rendered from the same
// descriptor so every data file, hidden import and exclusion reaches the tool.
package bundler
