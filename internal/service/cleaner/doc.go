// Package cleaner removes stale build output before a new bundle is built.
package cleaner
