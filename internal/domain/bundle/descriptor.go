package bundle

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
)

const (
	// bundleExtension is appended to the application name to form the bundle directory.
	bundleExtension = ".app"
	// imageExtension is the disk image file extension.
	imageExtension = ".dmg"
	// usageDescriptionSuffix is shared by every macOS privacy usage key.
	usageDescriptionSuffix = "UsageDescription"
)

var (
	// ErrInvalidDescriptor wraps every descriptor validation failure.
	ErrInvalidDescriptor = errors.New("invalid bundle descriptor")

	errEntryPointRequired = errors.New("entry point must be provided")
	errIdentifierRequired = errors.New("bundle identifier must be provided")
	errNameRequired       = errors.New("bundle name must be provided")
	errVersionRequired    = errors.New("bundle version must be provided")
	errDataFileSource     = errors.New("data file source must be provided")
	errDataFileDest       = errors.New("data file destination must be a relative path inside the bundle")
	errUsageKey           = errors.New("usage description key must end with " + usageDescriptionSuffix)
	errExcludeConflict    = errors.New("module is both included and excluded")
)

// DataFile maps a project file or directory to a destination inside the bundle resources.
type DataFile struct {
	// Source is the path relative to the project directory.
	Source string `yaml:"source"`
	// Destination is the directory relative to the bundle resources root.
	Destination string `yaml:"destination"`
}

// Metadata is the bundle metadata rendered into Info.plist.
type Metadata struct {
	// Identifier is the reverse-DNS bundle identifier (CFBundleIdentifier).
	Identifier string `yaml:"identifier"`
	// Name is the bundle name; it also names the .app directory and the disk image.
	Name string `yaml:"name"`
	// DisplayName is shown by Finder; defaults to Name.
	DisplayName string `yaml:"display_name,omitempty"`
	// Version is the build version (CFBundleVersion).
	Version string `yaml:"version"`
	// ShortVersion is the marketing version; defaults to Version.
	ShortVersion string `yaml:"short_version,omitempty"`
	// Copyright is the human readable copyright line.
	Copyright string `yaml:"copyright,omitempty"`
	// UsageDescriptions maps privacy keys such as NSMicrophoneUsageDescription to the text shown by the OS.
	UsageDescriptions map[string]string `yaml:"usage_descriptions,omitempty"`
}

// Descriptor is everything the bundler needs to produce the application bundle.
type Descriptor struct {
	// EntryPoint is the script the bundled executable starts.
	EntryPoint string `yaml:"entry_point"`
	// DataFiles are embedded into the bundle resources.
	DataFiles []DataFile `yaml:"data_files,omitempty"`
	// HiddenImports are modules the bundler cannot discover by static analysis.
	HiddenImports []string `yaml:"hidden_imports,omitempty"`
	// Packages are whole packages copied into the bundle (py2app only).
	Packages []string `yaml:"packages,omitempty"`
	// Excludes are modules that must not end up in the bundle.
	Excludes []string `yaml:"excludes,omitempty"`
	// Icon is the application icon path relative to the project directory.
	Icon string `yaml:"icon,omitempty"`
	// Metadata is rendered into Info.plist.
	Metadata Metadata `yaml:"metadata"`
}

// PlistEntry is a single Info.plist key/value pair.
type PlistEntry struct {
	Key   string
	Value string
}

// Default returns the descriptor RWB has been released with.
func Default() *Descriptor {
	return &Descriptor{
		EntryPoint: "main.py",
		DataFiles: []DataFile{
			{Source: "rwb/icons", Destination: "icons"},
		},
		HiddenImports: []string{
			"PySide6.QtCore",
			"PySide6.QtGui",
			"PySide6.QtWidgets",
		},
		Packages: []string{
			"rwb", "agno", "PySide6", "numpy", "librosa", "ollama", "fastrtc", "pyaudio",
			"duckduckgo_search", "kokoro", "markdown", "newspaper4k", "pydub", "pygame",
		},
		Excludes: []string{"tkinter", "matplotlib", "PyQt5"},
		Icon:     "rwb/icons/horstcartoon.png",
		Metadata: Metadata{
			Identifier:   "com.rwb.app",
			Name:         "RWB",
			DisplayName:  "RWB",
			Version:      "0.1.0",
			ShortVersion: "0.1.0",
			Copyright:    "Copyright © 2025, All Rights Reserved",
			UsageDescriptions: map[string]string{
				"NSMicrophoneUsageDescription": "The application needs access to the microphone for audio input.",
			},
		},
	}
}

// Validate checks required fields and cross-field consistency.
func (d *Descriptor) Validate() error {
	if err := d.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}

	return nil
}

func (d *Descriptor) validate() error {
	switch {
	case strings.TrimSpace(d.EntryPoint) == "":
		return errEntryPointRequired
	case strings.TrimSpace(d.Metadata.Identifier) == "":
		return errIdentifierRequired
	case strings.TrimSpace(d.Metadata.Name) == "":
		return errNameRequired
	case strings.TrimSpace(d.Metadata.Version) == "":
		return errVersionRequired
	}

	for _, df := range d.DataFiles {
		if strings.TrimSpace(df.Source) == "" {
			return errDataFileSource
		}

		if !isInsideBundle(df.Destination) {
			return fmt.Errorf("%q: %w", df.Destination, errDataFileDest)
		}
	}

	for key := range d.Metadata.UsageDescriptions {
		if !strings.HasSuffix(key, usageDescriptionSuffix) {
			return fmt.Errorf("%q: %w", key, errUsageKey)
		}
	}

	// Excluding a submodule of an included package is allowed; excluding an
	// included module or one of its parent packages is not.
	for _, excluded := range d.Excludes {
		for _, included := range slices.Concat(d.HiddenImports, d.Packages) {
			if ContainsModule(excluded, included) {
				return fmt.Errorf("%s excludes %s: %w", excluded, included, errExcludeConflict)
			}
		}
	}

	return nil
}

// Clone returns a deep copy of the descriptor.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}

	cloned := *d
	cloned.DataFiles = slices.Clone(d.DataFiles)
	cloned.HiddenImports = slices.Clone(d.HiddenImports)
	cloned.Packages = slices.Clone(d.Packages)
	cloned.Excludes = slices.Clone(d.Excludes)
	cloned.Metadata.UsageDescriptions = maps.Clone(d.Metadata.UsageDescriptions)

	return &cloned
}

// BundleName is the directory name of the produced bundle, e.g. "RWB.app".
func (d *Descriptor) BundleName() string {
	return d.Metadata.Name + bundleExtension
}

// ImageName is the fixed, versioned disk image filename, e.g. "RWB-0.1.0.dmg".
func (d *Descriptor) ImageName() string {
	return d.Metadata.Name + "-" + d.Metadata.Version + imageExtension
}

// InfoPlist returns Info.plist entries in a stable order.
func (d *Descriptor) InfoPlist() []PlistEntry {
	m := d.Metadata

	displayName := m.DisplayName
	if displayName == "" {
		displayName = m.Name
	}

	shortVersion := m.ShortVersion
	if shortVersion == "" {
		shortVersion = m.Version
	}

	entries := []PlistEntry{
		{Key: "CFBundleName", Value: m.Name},
		{Key: "CFBundleDisplayName", Value: displayName},
		{Key: "CFBundleIdentifier", Value: m.Identifier},
		{Key: "CFBundleVersion", Value: m.Version},
		{Key: "CFBundleShortVersionString", Value: shortVersion},
	}

	if m.Copyright != "" {
		entries = append(entries, PlistEntry{Key: "NSHumanReadableCopyright", Value: m.Copyright})
	}

	for _, key := range slices.Sorted(maps.Keys(m.UsageDescriptions)) {
		entries = append(entries, PlistEntry{Key: key, Value: m.UsageDescriptions[key]})
	}

	return entries
}

// ContainsModule reports whether the dotted module name is parent itself or one of its submodules.
func ContainsModule(parent, name string) bool {
	parent, name = strings.TrimSpace(parent), strings.TrimSpace(name)

	return name == parent || strings.HasPrefix(name, parent+".")
}

// ModuleSegments splits a dotted module name into its package path.
func ModuleSegments(name string) []string {
	return strings.Split(strings.TrimSpace(name), ".")
}

// isInsideBundle reports whether dest is a non-empty relative path that stays inside the bundle.
func isInsideBundle(dest string) bool {
	dest = strings.TrimSpace(dest)
	if dest == "" || filepath.IsAbs(dest) {
		return false
	}

	return filepath.IsLocal(dest)
}
