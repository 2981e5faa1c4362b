package bundler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/rwb-release/internal/config"
	"github.com/oshokin/rwb-release/internal/domain/bundle"
	"github.com/oshokin/rwb-release/internal/service/common"
)

var errToolCrashed = errors.New("tool crashed")

// fakeRunner records commands and returns err for each of them.
type fakeRunner struct {
	commands []common.Command
	err      error
}

// Run records cmd.
func (r *fakeRunner) Run(_ context.Context, cmd common.Command) error {
	r.commands = append(r.commands, cmd)

	return r.err
}

// newRequest returns a build request rooted in a temporary project directory.
func newRequest(t *testing.T) *Request {
	t.Helper()

	project := t.TempDir()

	return &Request{
		ProjectDir: project,
		BuildDir:   filepath.Join(project, "build"),
		DistDir:    filepath.Join(project, "dist"),
		Descriptor: bundle.Default(),
	}
}

// TestRender_DescriptorCompleteness checks every declared mapping, import and exclusion
// reaches the rendered descriptor of both variants.
func TestRender_DescriptorCompleteness(t *testing.T) {
	t.Parallel()

	d := bundle.Default()
	d.DataFiles = append(d.DataFiles, bundle.DataFile{Source: "rwb/prompts/system.txt", Destination: "prompts"})
	d.HiddenImports = append(d.HiddenImports, "kokoro.pipeline")
	d.Excludes = append(d.Excludes, "IPython")

	for _, variant := range config.Variants() {
		out, err := Render(variant, "/src/rwb", d)
		require.NoError(t, err, variant)

		text := string(out)

		for _, df := range d.DataFiles {
			require.Contains(t, text, strconv.Quote(filepath.Join("/src/rwb", df.Source)), variant)
			require.Contains(t, text, strconv.Quote(df.Destination), variant)
		}

		for _, name := range d.HiddenImports {
			require.Contains(t, text, strconv.Quote(name), variant)
		}

		for _, name := range d.Excludes {
			require.Contains(t, text, strconv.Quote(name), variant)
		}

		for _, entry := range d.InfoPlist() {
			require.Contains(t, text, strconv.Quote(entry.Key)+": "+strconv.Quote(entry.Value), variant)
		}

		require.Contains(t, text, strconv.Quote("/src/rwb/main.py"), variant)
		require.Contains(t, text, strconv.Quote("/src/rwb/rwb/icons/horstcartoon.png"), variant)
	}
}

// TestRender_Variants checks variant-specific structure.
func TestRender_Variants(t *testing.T) {
	t.Parallel()

	spec, err := Render(config.VariantPyInstaller, "/src/rwb", bundle.Default())
	require.NoError(t, err)
	require.Contains(t, string(spec), `name="RWB.app"`)
	require.Contains(t, string(spec), `bundle_identifier="com.rwb.app"`)

	setup, err := Render(config.VariantPy2App, "/src/rwb", bundle.Default())
	require.NoError(t, err)
	require.Contains(t, string(setup), `"packages": ["rwb", "agno"`)
	require.Contains(t, string(setup), `options={"py2app": OPTIONS}`)

	d := bundle.Default()
	d.Icon = ""
	setup, err = Render(config.VariantPy2App, "/src/rwb", d)
	require.NoError(t, err)
	require.Contains(t, string(setup), `"iconfile": None`)

	_, err = Render("briefcase", "/src/rwb", d)
	require.ErrorIs(t, err, errUnknownVariant)

	d.EntryPoint = ""
	_, err = Render(config.VariantPyInstaller, "/src/rwb", d)
	require.ErrorIs(t, err, bundle.ErrInvalidDescriptor)
}

// TestPyString escapes quotes and control characters as Python expects.
func TestPyString(t *testing.T) {
	t.Parallel()

	require.Equal(t, `"say \"hi\"\n"`, pyString("say \"hi\"\n"))
	require.Equal(t, `"Copyright © 2025"`, pyString("Copyright © 2025"))
}

// TestPyInstaller_Build writes the .spec file and runs a clean, non-interactive build.
func TestPyInstaller_Build(t *testing.T) {
	t.Parallel()

	req := newRequest(t)
	runner := new(fakeRunner)

	b, err := New(config.VariantPyInstaller, runner, "python3")
	require.NoError(t, err)

	res, err := b.Build(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(req.DistDir, "RWB.app"), res.BundlePath)
	require.FileExists(t, res.DescriptorPath)

	require.Len(t, runner.commands, 1)
	cmd := runner.commands[0]
	require.Equal(t, req.ProjectDir, cmd.Dir)
	require.Contains(t, cmd.Args, "--clean")
	require.Contains(t, cmd.Args, "--noconfirm")
	require.Equal(t, res.DescriptorPath, cmd.Args[len(cmd.Args)-1])
}

// TestPy2App_Build writes the setup script and passes build/dist directories.
func TestPy2App_Build(t *testing.T) {
	t.Parallel()

	req := newRequest(t)
	runner := new(fakeRunner)

	b, err := New(config.VariantPy2App, runner, "python3")
	require.NoError(t, err)

	res, err := b.Build(context.Background(), req)
	require.NoError(t, err)

	contents, err := os.ReadFile(res.DescriptorPath)
	require.NoError(t, err)
	require.Contains(t, string(contents), "setup(")

	cmd := runner.commands[0]
	require.Equal(t, []string{res.DescriptorPath, "py2app", "--dist-dir", req.DistDir, "--bdist-base", req.BuildDir}, cmd.Args)
}

// TestBuild_Failures propagates tool failures and rejects incomplete requests.
func TestBuild_Failures(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errToolCrashed}

	for _, variant := range config.Variants() {
		b, err := New(variant, runner, "python3")
		require.NoError(t, err)

		_, err = b.Build(context.Background(), newRequest(t))
		require.ErrorIs(t, err, errToolCrashed, variant)

		_, err = b.Build(context.Background(), &Request{})
		require.ErrorIs(t, err, errEmptyRequest, variant)
	}

	_, err := New("nuitka", runner, "python3")
	require.ErrorIs(t, err, errUnknownVariant)
}
