// Test Type: Unit Test
// Description: Tests for presets, rendering and config init

package config_test

import (
	"os"
	"testing"

	"github.com/arthur-debert/sfcbuild/pkg/config"
	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreset(t *testing.T) {
	cfg, err := config.Preset(config.PresetPDFViewer)
	require.NoError(t, err)

	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, `\.(js|mjs)$`, cfg.Rules[0].Test)
	assert.Equal(t, "./", cfg.PublicPath)
	assert.True(t, cfg.HasPlugin("vue"))
	assert.True(t, cfg.HasPlugin("copy"))

	_, err = config.Preset("webpack")
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestWriteInit_RoundTrip(t *testing.T) {
	for _, format := range []string{config.FormatTOML, config.FormatYAML} {
		t.Run(format, func(t *testing.T) {
			root := t.TempDir()

			path, err := config.WriteInit(root, config.PresetPDFViewer, format, false)
			require.NoError(t, err)
			_, err = os.Stat(path)
			require.NoError(t, err)

			cfg, err := config.Load(config.LoadOptions{Root: root})
			require.NoError(t, err)

			require.Len(t, cfg.Rules, 1)
			assert.Equal(t, "pdfjs", cfg.Rules[0].Name)
			assert.Equal(t, `\.(js|mjs)$`, cfg.Rules[0].Test)
			assert.Equal(t, []string{"node_modules/pdfjs-dist"}, cfg.Rules[0].Include)

			names := make([]string, 0, len(cfg.Plugins))
			for _, p := range cfg.Plugins {
				names = append(names, p.Name)
			}
			assert.Equal(t, []string{"vue", "copy", "define", "html"}, names)
			assert.Equal(t, "node_modules/pdfjs-dist/build/pdf.mjs", cfg.Aliases["pdfjs-dist"])

			_, err = config.WriteInit(root, config.PresetPDFViewer, format, false)
			assert.True(t, errors.IsErrorCode(err, errors.ErrAlreadyExists))

			_, err = config.WriteInit(root, config.PresetMinimal, format, true)
			assert.NoError(t, err)
		})
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	cfg, err := config.Defaults()
	require.NoError(t, err)
	_, err = config.Render(cfg, "json5")
	assert.Error(t, err)
}
