package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Output formats for Render
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

// PresetPDFViewer reproduces the PDF viewer component build: pdfjs-dist
// scripts lowered for module-capable browsers, its character maps mirrored
// next to the bundle, and a relative public path.
const PresetPDFViewer = "pdfviewer"

// PresetMinimal is the embedded defaults
const PresetMinimal = "minimal"

// PresetNames lists the known presets
func PresetNames() []string {
	names := []string{PresetMinimal, PresetPDFViewer}
	sort.Strings(names)
	return names
}

// Preset returns a named starting configuration
func Preset(name string) (*types.Pipeline, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	switch name {
	case PresetMinimal, "":
		return cfg, nil
	case PresetPDFViewer:
		cfg.Title = "pdf-viewer"
		cfg.Rules = []types.TransformRule{
			{
				Name:    "pdfjs",
				Test:    `\.(js|mjs)$`,
				Include: []string{"node_modules/pdfjs-dist"},
				Tool:    "esbuild",
				Options: map[string]interface{}{
					"targets": map[string]interface{}{"esmodules": true},
				},
				OnEmpty: types.EmptyMatchWarn,
			},
		}
		cfg.Plugins = []types.PluginSpec{
			{Name: "vue"},
			{Name: "copy", Options: map[string]interface{}{
				"patterns": []map[string]interface{}{
					{"from": "node_modules/pdfjs-dist/cmaps/", "to": "pdfjs-dist/cmaps/"},
				},
			}},
			{Name: "define"},
			{Name: "html"},
		}
		cfg.Aliases = map[string]string{
			"pdfjs-dist": "node_modules/pdfjs-dist/build/pdf.mjs",
		}
		return cfg, nil
	}

	return nil, errors.Newf(errors.ErrInvalidInput, "unknown preset %q", name).
		WithDetail("known", PresetNames())
}

// Render serialises a configuration in the given format
func Render(cfg *types.Pipeline, format string) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch format {
	case FormatTOML, "":
		out, err = toml.Marshal(cfg)
	case FormatYAML:
		out, err = yaml.Marshal(cfg)
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInternal, "failed to render %s", format)
	}
	return out, nil
}

// WriteInit writes a preset as the project file. It refuses to overwrite
// an existing file unless force is set.
func WriteInit(root, preset, format string, force bool) (string, error) {
	cfg, err := Preset(preset)
	if err != nil {
		return "", err
	}

	name := "sfcbuild.toml"
	if format == FormatYAML {
		name = "sfcbuild.yaml"
	}
	path := filepath.Join(root, name)

	if _, err := os.Stat(path); err == nil && !force {
		return "", errors.Newf(errors.ErrAlreadyExists, "%s already exists", name).WithPath(path)
	}

	body, err := Render(cfg, format)
	if err != nil {
		return "", err
	}
	header := fmt.Sprintf("# sfcbuild configuration (preset %q)\n", preset)
	if err := os.WriteFile(path, append([]byte(header), body...), 0644); err != nil {
		return "", errors.Wrapf(err, errors.ErrFileWrite, "failed to write %s", name).WithPath(path)
	}
	return path, nil
}
