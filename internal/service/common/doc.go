// Package common holds helpers shared by the workflow steps.
//
// It runs external tools with logged output and classified failures, loads
// the optional environment file handed to those tools, detects the current
// system actor for the release manifest and guards a project against two
// runs in flight at once.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
