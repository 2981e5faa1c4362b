// Package config defines the release configuration consumed by rwb-release
// and provides helpers to load, validate and save it in YAML format.
//
// The Config type carries every path the workflow touches together with the
// bundle descriptor, so no step relies on the process working directory.
package config
