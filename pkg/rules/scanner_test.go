// Test Type: Unit Test
// Description: Tests for input scanning over an in-memory project

package rules_test

import (
	"path/filepath"
	"testing"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/filesystem"
	"github.com/arthur-debert/sfcbuild/pkg/rules"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectRoot = "/proj"

func newProject(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := filesystem.NewMemory()
	for rel, content := range files {
		p := filepath.Join(projectRoot, filepath.FromSlash(rel))
		require.NoError(t, fs.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0644))
	}
	return fs
}

func scanConfig() *types.Pipeline {
	return &types.Pipeline{
		Root:          projectRoot,
		SourceDir:     "src",
		DependencyDir: "node_modules",
		OutputDir:     "dist",
		Rules:         []types.TransformRule{pdfjsRule()},
	}
}

func TestScan(t *testing.T) {
	fs := newProject(t, map[string]string{
		"src/main.js":                              "import App from './App.vue'",
		"src/App.vue":                              "<template><div/></template>",
		"src/.git/HEAD":                            "ref",
		"node_modules/pdfjs-dist/build/pdf.mjs":    "export const v = a ?? b",
		"node_modules/pdfjs-dist/cmaps/78-H.bcmap": "\x00\x01",
		"node_modules/vue/index.js":                "module.exports = {}",
		"dist/stale.js":                            "old",
	})
	cfg := scanConfig()
	m, err := rules.Compile(cfg.Rules, cfg.SourceDir)
	require.NoError(t, err)

	scanner, err := rules.NewScanner(fs, cfg, m)
	require.NoError(t, err)
	result, err := scanner.Scan()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"src/App.vue",
		"src/main.js",
		"node_modules/pdfjs-dist/build/pdf.mjs",
		"node_modules/pdfjs-dist/cmaps/78-H.bcmap",
	}, result.Rels(), "only the source dir and rule scopes are walked")
	assert.Equal(t, 1, result.Count(".vue"))
	assert.Equal(t, rules.OriginSource, result.Files[0].Origin)
	assert.Equal(t, rules.OriginDependency, result.Files[2].Origin)
	assert.Equal(t, int64(len("<template><div/></template>")), result.Files[0].Size)
}

func TestScan_IgnoreFile(t *testing.T) {
	fs := newProject(t, map[string]string{
		rules.IgnoreFile:          "# generated\nsrc/generated\n*.md\n",
		"src/main.js":             "x",
		"src/generated/schema.js": "x",
		"README.md":               "x",
	})
	cfg := scanConfig()
	cfg.Rules = nil

	scanner, err := rules.NewScanner(fs, cfg, nil)
	require.NoError(t, err)
	result, err := scanner.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.js"}, result.Rels())
}

func TestScan_OutputInsideSource(t *testing.T) {
	fs := newProject(t, map[string]string{
		"src/main.js":     "x",
		"src/out/main.js": "stale",
	})
	cfg := scanConfig()
	cfg.OutputDir = "src/out"

	m, err := rules.Compile(nil, cfg.SourceDir)
	require.NoError(t, err)
	scanner, err := rules.NewScanner(fs, cfg, m)
	require.NoError(t, err)
	result, err := scanner.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.js"}, result.Rels())
}

func TestScan_MissingDirectories(t *testing.T) {
	t.Run("missing_source_dir", func(t *testing.T) {
		fs := newProject(t, map[string]string{"node_modules/x/index.js": "x"})
		scanner, err := rules.NewScanner(fs, scanConfig(), nil)
		require.NoError(t, err)

		_, err = scanner.Scan()
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrSourceMissing))
		assert.Equal(t, errors.CategoryResource, errors.CategoryOf(err))
		assert.Equal(t, "/proj/src", errors.PathOf(err))
	})

	t.Run("missing_scope_matches_nothing", func(t *testing.T) {
		fs := newProject(t, map[string]string{"src/main.js": "x"})
		cfg := scanConfig()
		m, err := rules.Compile(cfg.Rules, cfg.SourceDir)
		require.NoError(t, err)

		scanner, err := rules.NewScanner(fs, cfg, m)
		require.NoError(t, err)
		result, err := scanner.Scan()
		require.NoError(t, err)
		assert.Equal(t, []string{"src/main.js"}, result.Rels())
		assert.Equal(t, 0, m.Resolve(result.Rels()).Counts["pdfjs"])
	})
}
