package bundler

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"text/template"

	"github.com/oshokin/rwb-release/internal/config"
	"github.com/oshokin/rwb-release/internal/domain/bundle"
	"github.com/oshokin/rwb-release/internal/version"
)

// pyInstallerSpec is the PyInstaller spec rendered from a descriptor.
const pyInstallerSpec = `# -*- mode: python ; coding: utf-8 -*-
# Generated by rwb-release {{ .ToolVersion }}. Edit the release configuration instead.

a = Analysis(
    [{{ py .EntryPoint }}],
    pathex=[{{ py .ProjectDir }}],
    binaries=[],
    datas=[{{ range .DataFiles }}
        ({{ py .Source }}, {{ py .Destination }}),{{ end }}
    ],
    hiddenimports=[{{ range .HiddenImports }}{{ py . }}, {{ end }}],
    hookspath=[],
    runtime_hooks=[],
    excludes=[{{ range .Excludes }}{{ py . }}, {{ end }}],
    noarchive=False,
)
pyz = PYZ(a.pure)

exe = EXE(
    pyz,
    a.scripts,
    [],
    exclude_binaries=True,
    name={{ py .Name }},
    debug=False,
    strip=False,
    upx=False,
    console=False,
    argv_emulation=True,
    icon={{ pyOrNone .Icon }},
)
coll = COLLECT(
    exe,
    a.binaries,
    a.datas,
    strip=False,
    upx=False,
    name={{ py .Name }},
)
app = BUNDLE(
    coll,
    name={{ py .BundleName }},
    icon={{ pyOrNone .Icon }},
    bundle_identifier={{ py .Identifier }},
    info_plist={ {{ range .Plist }}
        {{ py .Key }}: {{ py .Value }},{{ end }}
    },
)
`

// py2appSetup is the py2app setup script rendered from a descriptor.
const py2appSetup = `# Generated by rwb-release {{ .ToolVersion }}. Edit the release configuration instead.
import glob
import os

from setuptools import setup


def _data(src):
    if os.path.isdir(src):
        return sorted(glob.glob(os.path.join(src, "*")))
    return [src]


APP = [{{ py .EntryPoint }}]
DATA_FILES = [{{ range .DataFiles }}
    ({{ py .Destination }}, _data({{ py .Source }})),{{ end }}
]
OPTIONS = {
    "argv_emulation": True,
    "packages": [{{ range .Packages }}{{ py . }}, {{ end }}],
    "includes": [{{ range .HiddenImports }}{{ py . }}, {{ end }}],
    "excludes": [{{ range .Excludes }}{{ py . }}, {{ end }}],
    "iconfile": {{ pyOrNone .Icon }},
    "plist": { {{ range .Plist }}
        {{ py .Key }}: {{ py .Value }},{{ end }}
    },
}

setup(
    name={{ py .Name }},
    app=APP,
    data_files=DATA_FILES,
    options={"py2app": OPTIONS},
    setup_requires=["py2app"],
)
`

//nolint:gochecknoglobals // Parsed once; templates are immutable after init.
var templates = map[string]*template.Template{
	config.VariantPyInstaller: template.Must(template.New("spec").Funcs(funcs()).Parse(pyInstallerSpec)),
	config.VariantPy2App:      template.Must(template.New("setup").Funcs(funcs()).Parse(py2appSetup)),
}

// view is the template input; every path is already absolute.
type view struct {
	ToolVersion   string
	ProjectDir    string
	EntryPoint    string
	DataFiles     []bundle.DataFile
	HiddenImports []string
	Packages      []string
	Excludes      []string
	Icon          string
	Name          string
	BundleName    string
	Identifier    string
	Plist         []bundle.PlistEntry
}

// Render returns the descriptor the variant's tool consumes.
// Relative paths are resolved against projectDir so the result does not
// depend on where the tool resolves them from.
func Render(variant, projectDir string, d *bundle.Descriptor) ([]byte, error) {
	tmpl, ok := templates[variant]
	if !ok {
		return nil, fmt.Errorf("%q: %w", variant, errUnknownVariant)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}

		return filepath.Join(root, p)
	}

	v := view{
		ToolVersion:   version.Short(),
		ProjectDir:    root,
		EntryPoint:    resolve(d.EntryPoint),
		HiddenImports: d.HiddenImports,
		Packages:      d.Packages,
		Excludes:      d.Excludes,
		Icon:          resolve(d.Icon),
		Name:          d.Metadata.Name,
		BundleName:    d.BundleName(),
		Identifier:    d.Metadata.Identifier,
		Plist:         d.InfoPlist(),
	}

	for _, df := range d.DataFiles {
		v.DataFiles = append(v.DataFiles, bundle.DataFile{
			Source:      resolve(df.Source),
			Destination: filepath.ToSlash(filepath.Clean(df.Destination)),
		})
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("render %s descriptor: %w", variant, err)
	}

	return buf.Bytes(), nil
}

// funcs are the template helpers producing Python literals.
func funcs() template.FuncMap {
	return template.FuncMap{
		"py": pyString,
		"pyOrNone": func(s string) string {
			if s == "" {
				return "None"
			}

			return pyString(s)
		},
	}
}

// pyString renders s as a Python string literal. Go's quoting escapes are a
// subset of Python's, and printable Unicode is kept as-is in the UTF-8 source.
func pyString(s string) string {
	return strconv.Quote(s)
}
