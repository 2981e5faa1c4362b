package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/rwb-release/internal/domain/bundle"
)

// Config holds everything a packaging run needs.
type Config struct {
	// Variant selects the bundler: "pyinstaller" or "py2app".
	Variant string `yaml:"variant"`
	// ProjectDir is the root of the application sources; relative dirs below resolve against it.
	// A relative ProjectDir in a configuration file resolves against the directory of that file.
	ProjectDir string `yaml:"project_dir"`
	// BuildDir is the bundler work directory, wiped before every build.
	BuildDir string `yaml:"build_dir"`
	// DistDir is the bundler output directory, wiped before every build.
	DistDir string `yaml:"dist_dir"`
	// StagingParent is where the staging directory is created; empty means the system temp dir.
	StagingParent string `yaml:"staging_parent,omitempty"`
	// OutputDir receives the disk image and its manifest.
	OutputDir string `yaml:"output_dir"`
	// VolumeName is the mounted volume name; defaults to the bundle display name.
	VolumeName string `yaml:"volume_name,omitempty"`
	// ImageFormat is the hdiutil image format.
	ImageFormat string `yaml:"image_format"`
	// ApplicationsLink is the symlink target placed next to the bundle in the image.
	ApplicationsLink string `yaml:"applications_link"`
	// Python is the interpreter used for pip and the bundlers.
	Python string `yaml:"python"`
	// Package is the pip requirement installed without dependencies before building.
	Package string `yaml:"package"`
	// EnvFile is an optional KEY=VALUE file merged into the environment of external tools.
	EnvFile string `yaml:"env_file,omitempty"`
	// KeepStaging leaves the staging directory in place for inspection.
	KeepStaging bool `yaml:"keep_staging,omitempty"`
	// ToolTimeout bounds each external tool invocation; zero means no limit.
	ToolTimeout time.Duration `yaml:"tool_timeout,omitempty"`
	// Bundle is the bundle descriptor.
	Bundle *bundle.Descriptor `yaml:"bundle"`
}

const (
	// DefaultConfigFilename is the default filename for the release configuration.
	DefaultConfigFilename = "rwb-release.yaml"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// VariantPyInstaller bundles with PyInstaller.
	VariantPyInstaller = "pyinstaller"
	// VariantPy2App bundles with py2app.
	VariantPy2App = "py2app"

	// DefaultImageFormat is a zlib-compressed read-only image.
	DefaultImageFormat = "UDZO"
	// DefaultApplicationsLink is the macOS applications folder.
	DefaultApplicationsLink = "/Applications"

	defaultBuildDir  = "build"
	defaultDistDir   = "dist"
	defaultOutputDir = "."
	defaultPython    = "python3"
	defaultPackage   = "."

	// markerFilename marks a workflow in flight for this project.
	markerFilename = ".rwb-release.marker"
	// manifestSuffix is appended to the image name to form the manifest filename.
	manifestSuffix = ".yaml"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownVariant is returned for bundler variants other than pyinstaller and py2app.
	errUnknownVariant = errors.New("unknown bundler variant")
	// errUnknownFormat is returned for image formats hdiutil cannot write read-only.
	errUnknownFormat = errors.New("unsupported image format")
	// errOverlappingDirs is returned when wiping build or dist would remove another configured directory.
	errOverlappingDirs = errors.New("build and dist directories must be separate and must not contain the project or output directory")
)

// Variants lists the supported bundler variants.
func Variants() []string {
	return []string{VariantPyInstaller, VariantPy2App}
}

// imageFormats are the compressed read-only formats hdiutil create accepts.
func imageFormats() []string {
	return []string{"UDZO", "UDBZ", "ULFO", "ULMO", "UDRO"}
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		Variant: VariantPyInstaller,
		Bundle:  bundle.Default(),
	}

	// Default() is always valid; Validate only fills the remaining defaults here.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
// An empty path loads DefaultConfigFilename when it exists and falls back to Default otherwise.
func Load(path string) (*Config, error) {
	if path == "" {
		if _, err := os.Stat(DefaultConfigFilename); errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if !filepath.IsAbs(cfg.ProjectDir) {
		cfg.ProjectDir = filepath.Join(filepath.Dir(path), strings.TrimSpace(cfg.ProjectDir))
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write configuration: %w", err)
	}

	return nil
}

// Validate checks the configuration and fills defaults for omitted fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	cfg.Variant = strings.ToLower(strings.TrimSpace(cfg.Variant))
	if cfg.Variant == "" {
		cfg.Variant = VariantPyInstaller
	}

	if !slices.Contains(Variants(), cfg.Variant) {
		return fmt.Errorf("%q: %w", cfg.Variant, errUnknownVariant)
	}

	setDefault(&cfg.ProjectDir, ".")
	setDefault(&cfg.BuildDir, defaultBuildDir)
	setDefault(&cfg.DistDir, defaultDistDir)
	setDefault(&cfg.OutputDir, defaultOutputDir)
	setDefault(&cfg.ImageFormat, DefaultImageFormat)
	setDefault(&cfg.ApplicationsLink, DefaultApplicationsLink)
	setDefault(&cfg.Python, defaultPython)
	setDefault(&cfg.Package, defaultPackage)

	cfg.ImageFormat = strings.ToUpper(cfg.ImageFormat)
	if !slices.Contains(imageFormats(), cfg.ImageFormat) {
		return fmt.Errorf("%q: %w", cfg.ImageFormat, errUnknownFormat)
	}

	if cfg.ToolTimeout < 0 {
		cfg.ToolTimeout = 0
	}

	if cfg.Bundle == nil {
		cfg.Bundle = bundle.Default()
	}

	if err := cfg.Bundle.Validate(); err != nil {
		return err
	}

	if cfg.VolumeName == "" {
		cfg.VolumeName = cfg.Bundle.Metadata.DisplayName
		setDefault(&cfg.VolumeName, cfg.Bundle.Metadata.Name)
	}

	build, dist := cfg.BuildPath(), cfg.DistPath()

	for _, wiped := range []string{build, dist} {
		for _, kept := range []string{cfg.ProjectDir, cfg.Resolve(cfg.OutputDir)} {
			if Contains(wiped, kept) {
				return fmt.Errorf("%s contains %s: %w", wiped, kept, errOverlappingDirs)
			}
		}
	}

	if Contains(build, dist) || Contains(dist, build) {
		return fmt.Errorf("%s and %s overlap: %w", build, dist, errOverlappingDirs)
	}

	return nil
}

// Resolve returns p joined to the project directory unless it is absolute.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(c.ProjectDir, p)
}

// BuildPath is the resolved bundler work directory.
func (c *Config) BuildPath() string {
	return c.Resolve(c.BuildDir)
}

// DistPath is the resolved bundler output directory.
func (c *Config) DistPath() string {
	return c.Resolve(c.DistDir)
}

// BundlePath is where the verified bundle is expected after the build.
func (c *Config) BundlePath() string {
	return filepath.Join(c.DistPath(), c.Bundle.BundleName())
}

// ImagePath is the fixed, versioned output path of the disk image.
func (c *Config) ImagePath() string {
	return filepath.Join(c.Resolve(c.OutputDir), c.Bundle.ImageName())
}

// ManifestPath is the release manifest written next to the image.
func (c *Config) ManifestPath() string {
	return c.ImagePath() + manifestSuffix
}

// MarkerPath is the in-flight marker for this project.
func (c *Config) MarkerPath() string {
	return filepath.Join(c.ProjectDir, markerFilename)
}

// EnvFilePath resolves the env file, or returns "" when none is configured.
func (c *Config) EnvFilePath() string {
	if c.EnvFile == "" {
		return ""
	}

	return c.Resolve(c.EnvFile)
}

// Contains reports whether p is dir itself or lies below it.
// Paths that cannot be made absolute are treated as contained.
func Contains(dir, p string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return true
	}

	absPath, err := filepath.Abs(p)
	if err != nil {
		return true
	}

	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func setDefault(field *string, value string) {
	*field = strings.TrimSpace(*field)
	if *field == "" {
		*field = value
	}
}
