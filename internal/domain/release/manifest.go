package release

import "time"

// Actor identifies who produced a release.
type Actor struct {
	// Hostname is the machine the workflow ran on.
	Hostname string `yaml:"hostname"`
	// Username is the system user who ran the workflow.
	Username string `yaml:"username"`
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// Manifest is the release record written next to the published disk image.
type Manifest struct {
	// Name is the application name.
	Name string `yaml:"name"`
	// Version is the application version.
	Version string `yaml:"version"`
	// Identifier is the bundle identifier.
	Identifier string `yaml:"identifier"`
	// Variant is the bundler that produced the bundle.
	Variant string `yaml:"variant"`
	// Image is the disk image filename.
	Image string `yaml:"image"`
	// Checksum is the base64 SHA-512 of the image.
	Checksum string `yaml:"checksum"`
	// Size is the image size in bytes.
	Size int64 `yaml:"size"`
	// HumanSize is Size rendered for operators.
	HumanSize string `yaml:"human_size"`
	// BuiltAt is when the image was published.
	BuiltAt time.Time `yaml:"built_at"`
	// BuiltBy is who ran the workflow.
	BuiltBy *Actor `yaml:"built_by,omitempty"`
	// ToolVersion is the rwb-release version.
	ToolVersion string `yaml:"tool_version"`
}

// Clone returns a copy of the manifest that does not share the actor.
func (m *Manifest) Clone() *Manifest {
	cloned := *m
	cloned.BuiltBy = m.BuiltBy.Clone()

	return &cloned
}
