// Test Type: Unit Test
// Description: Tests for the compilation hooks and the built-in plugins

package plugins_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/filesystem"
	"github.com/arthur-debert/sfcbuild/pkg/plugins"
	"github.com/arthur-debert/sfcbuild/pkg/registry"
	"github.com/arthur-debert/sfcbuild/pkg/rules"
	"github.com/arthur-debert/sfcbuild/pkg/sfc"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const root = "/proj"

func setup(t *testing.T, files map[string]string) (*types.Pipeline, afero.Fs) {
	t.Helper()
	fs := filesystem.NewMemory()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, fs.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0644))
	}
	cfg := &types.Pipeline{
		Root:       root,
		SourceDir:  "src",
		PublicDir:  "public",
		OutputDir:  "dist",
		PublicPath: "./",
		Entry:      "main.js",
		Title:      "pdf-viewer",
		Mode:       types.ModeProduction,
	}
	return cfg, fs
}

func apply(t *testing.T, c *plugins.Compilation, specs ...types.PluginSpec) {
	t.Helper()
	_, err := plugins.Apply(c, specs, plugins.NewRegistry())
	require.NoError(t, err)
}

func emitEntry(t *testing.T, c *plugins.Compilation) {
	t.Helper()
	require.NoError(t, c.Emit(&plugins.Output{
		Path: "main.js", Kind: plugins.KindScript, Content: []byte("console.log(process.env.NODE_ENV)"),
		From: "src/main.js", Origin: plugins.OriginSource,
	}))
}

func TestApply(t *testing.T) {
	cfg, fs := setup(t, nil)

	t.Run("registration_order", func(t *testing.T) {
		c := plugins.NewCompilation(cfg, fs, nil)
		applied, err := plugins.Apply(c, []types.PluginSpec{{Name: "define"}, {Name: "vue"}, {Name: "html"}}, plugins.NewRegistry())
		require.NoError(t, err)
		names := []string{}
		for _, p := range applied {
			names = append(names, p.Name())
		}
		assert.Equal(t, []string{"define", "vue", "html"}, names)
		_, ok := c.LoaderFor("src/App.VUE")
		assert.True(t, ok)
	})

	t.Run("unknown_plugin", func(t *testing.T) {
		c := plugins.NewCompilation(cfg, fs, nil)
		_, err := plugins.Apply(c, []types.PluginSpec{{Name: "bundle-analyzer"}}, plugins.NewRegistry())
		assert.True(t, errors.IsErrorCode(err, errors.ErrPluginUnknown))
		assert.Equal(t, errors.CategoryConfig, errors.CategoryOf(err))
	})

	t.Run("bad_options", func(t *testing.T) {
		c := plugins.NewCompilation(cfg, fs, nil)
		_, err := plugins.Apply(c, []types.PluginSpec{{Name: "copy", Options: map[string]interface{}{"pattern": 1}}}, plugins.NewRegistry())
		assert.Equal(t, errors.CategoryConfig, errors.CategoryOf(err))
	})

	t.Run("second_loader_for_extension", func(t *testing.T) {
		c := plugins.NewCompilation(cfg, fs, nil)
		reg := plugins.NewRegistry()
		require.NoError(t, reg.Register("vue2", func(map[string]interface{}) (plugins.Plugin, error) {
			return plugins.NewVue(), nil
		}))
		_, err := plugins.Apply(c, []types.PluginSpec{{Name: "vue"}, {Name: "vue2"}}, reg)
		assert.True(t, errors.IsErrorCode(err, errors.ErrConfigInvalid))
	})
}

func TestCompilation_Emit(t *testing.T) {
	cfg, fs := setup(t, nil)
	c := plugins.NewCompilation(cfg, fs, nil)

	require.NoError(t, c.Emit(&plugins.Output{Path: "./js/../main.js", Content: []byte("a"), From: "src/main.js"}))
	out, ok := c.Output("main.js")
	require.True(t, ok)
	assert.Equal(t, "a", string(out.Content))

	err := c.Emit(&plugins.Output{Path: "main.js", Source: "/proj/public/main.js"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigInvalid))
	assert.Contains(t, err.Error(), "src/main.js")

	for _, bad := range []string{"", "../x", "/etc/passwd", "."} {
		assert.Error(t, c.Emit(&plugins.Output{Path: bad}), bad)
	}
}

func TestVue(t *testing.T) {
	cfg, fs := setup(t, nil)

	t.Run("compiles_component", func(t *testing.T) {
		c := plugins.NewCompilation(cfg, fs, nil)
		vue := plugins.NewVue()
		_, err := plugins.Apply(c, []types.PluginSpec{{Name: "vue"}}, registryWith(vue))
		require.NoError(t, err)

		load, ok := c.LoaderFor("src/App.vue")
		require.True(t, ok)
		modules, err := load(context.Background(), rules.File{Rel: "src/App.vue"},
			[]byte("<template><p>hi</p></template><style scoped>p{color:red}</style>"))
		require.NoError(t, err)
		require.Len(t, modules, 2)
		assert.Equal(t, "src/App.js", modules[0].Path)
		assert.Equal(t, plugins.KindScript, modules[0].Kind)
		assert.Equal(t, "src/App.css", modules[1].Path)
		assert.Equal(t, plugins.KindStyle, modules[1].Kind)
		assert.Equal(t, int64(1), vue.Parsed())
	})

	t.Run("uppercase_extension", func(t *testing.T) {
		c := plugins.NewCompilation(cfg, fs, nil)
		_, err := plugins.Apply(c, []types.PluginSpec{{Name: "vue"}}, registryWith(plugins.NewVue()))
		require.NoError(t, err)

		load, ok := c.LoaderFor("src/Viewer.VUE")
		require.True(t, ok)
		modules, err := load(context.Background(), rules.File{Rel: "src/Viewer.VUE"},
			[]byte("<template><p>hi</p></template><style>p{color:red}</style>"))
		require.NoError(t, err)
		require.Len(t, modules, 2)
		assert.Equal(t, "src/Viewer.js", modules[0].Path)
		assert.Equal(t, "src/Viewer.css", modules[1].Path)
	})

	t.Run("parse_never_invoked_without_components", func(t *testing.T) {
		calls := 0
		vue := plugins.NewVueWithParser(func(rel string, src []byte) (*sfc.Descriptor, error) {
			calls++
			return sfc.Parse(rel, src)
		})
		c := plugins.NewCompilation(cfg, fs, &rules.ScanResult{Files: []rules.File{{Rel: "src/main.js"}}})
		_, err := plugins.Apply(c, []types.PluginSpec{{Name: "vue"}}, registryWith(vue))
		require.NoError(t, err)
		require.NoError(t, c.RunEmitHooks(context.Background()))

		_, ok := c.LoaderFor("src/main.js")
		assert.False(t, ok)
		assert.Zero(t, calls)
	})

	t.Run("parse_error_is_transform_error", func(t *testing.T) {
		c := plugins.NewCompilation(cfg, fs, nil)
		apply(t, c, types.PluginSpec{Name: "vue"})
		load, _ := c.LoaderFor("src/Bad.vue")
		_, err := load(context.Background(), rules.File{Rel: "src/Bad.vue"}, []byte("<template><p>"))
		assert.Equal(t, errors.CategoryTransform, errors.CategoryOf(err))
	})
}

func registryWith(vue *plugins.Vue) registry.Registry[plugins.Factory] {
	reg := registry.New[plugins.Factory]()
	registry.MustRegister[plugins.Factory](reg, plugins.PluginVue, func(map[string]interface{}) (plugins.Plugin, error) {
		return vue, nil
	})
	return reg
}

func copySpec(patterns ...map[string]interface{}) types.PluginSpec {
	list := make([]interface{}, len(patterns))
	for i, p := range patterns {
		list[i] = p
	}
	return types.PluginSpec{Name: "copy", Options: map[string]interface{}{"patterns": list}}
}

func TestCopy(t *testing.T) {
	ctx := context.Background()

	t.Run("mirrors_tree", func(t *testing.T) {
		cfg, fs := setup(t, map[string]string{
			"node_modules/pdfjs-dist/cmaps/78-H.bcmap":      "\x00\x01",
			"node_modules/pdfjs-dist/cmaps/Adobe-GB1.bcmap": "\x02",
			"node_modules/pdfjs-dist/cmaps/LICENSE":         "text",
			"node_modules/pdfjs-dist/cmaps/sub/x.bcmap":     "\x03",
		})
		c := plugins.NewCompilation(cfg, fs, nil)
		apply(t, c, copySpec(map[string]interface{}{"from": "node_modules/pdfjs-dist/cmaps/", "to": "pdfjs-dist/cmaps/"}))
		require.NoError(t, c.RunEmitHooks(ctx))

		var paths []string
		for _, out := range c.Outputs() {
			paths = append(paths, out.Path)
			assert.Equal(t, plugins.KindAsset, out.Kind)
			assert.Equal(t, plugins.OriginCopy, out.Origin)
			assert.Nil(t, out.Content, "copies are streamed from the source")
		}
		assert.Equal(t, []string{
			"pdfjs-dist/cmaps/78-H.bcmap",
			"pdfjs-dist/cmaps/Adobe-GB1.bcmap",
			"pdfjs-dist/cmaps/LICENSE",
			"pdfjs-dist/cmaps/sub/x.bcmap",
		}, paths)
		out, _ := c.Output("pdfjs-dist/cmaps/78-H.bcmap")
		assert.Equal(t, "/proj/node_modules/pdfjs-dist/cmaps/78-H.bcmap", out.Source)
	})

	t.Run("glob_and_ignore", func(t *testing.T) {
		cfg, fs := setup(t, map[string]string{
			"assets/a.bcmap":     "a",
			"assets/b.bcmap":     "b",
			"assets/notes.txt":   "n",
			"assets/sub/c.bcmap": "c",
		})
		c := plugins.NewCompilation(cfg, fs, nil)
		apply(t, c, copySpec(map[string]interface{}{
			"from": "assets", "to": "cmaps", "glob": "**/*.bcmap", "ignore": []interface{}{"b.*"},
		}))
		require.NoError(t, c.RunEmitHooks(ctx))

		var paths []string
		for _, out := range c.Outputs() {
			paths = append(paths, out.Path)
		}
		assert.Equal(t, []string{"cmaps/a.bcmap", "cmaps/sub/c.bcmap"}, paths)
	})

	t.Run("missing_source_is_resource_error", func(t *testing.T) {
		cfg, fs := setup(t, nil)
		c := plugins.NewCompilation(cfg, fs, nil)
		apply(t, c, copySpec(map[string]interface{}{"from": "node_modules/pdfjs-dist/cmaps/", "to": "pdfjs-dist/cmaps/"}))

		err := c.RunEmitHooks(ctx)
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrAssetSourceMissing))
		assert.Equal(t, errors.CategoryResource, errors.CategoryOf(err))
		assert.Equal(t, "/proj/node_modules/pdfjs-dist/cmaps", errors.PathOf(err))
		assert.Empty(t, c.Outputs())
	})

	t.Run("invalid_patterns", func(t *testing.T) {
		for _, pattern := range []map[string]interface{}{
			{"from": "", "to": "x"},
			{"from": "a", "to": ""},
			{"from": "../outside", "to": "x"},
			{"from": "a", "to": "../x"},
			{"from": "a", "to": "x", "glob": "[a"},
		} {
			_, err := plugins.NewCopy(map[string]interface{}{"patterns": []interface{}{pattern}})
			assert.Error(t, err, "%v", pattern)
		}
	})
}

func TestDefine(t *testing.T) {
	cfg, fs := setup(t, nil)
	cfg.Env = map[string]string{"VUE_APP_TITLE": "Viewer", "SECRET_TOKEN": "hunter2"}
	cfg.Define = map[string]string{"API": "api/"}

	c := plugins.NewCompilation(cfg, fs, nil)
	apply(t, c, types.PluginSpec{Name: "define", Options: map[string]interface{}{"values": map[string]interface{}{"EXTRA": "1"}}})
	require.NoError(t, c.Emit(&plugins.Output{
		Path: "main.js",
		Kind: plugins.KindScript,
		Content: []byte(`const t = process.env.VUE_APP_TITLE, s = process.env.SECRET_TOKEN;
fetch(process.env.BASE_URL + process.env.API + import.meta.env.EXTRA, process.env.NODE_ENV);`),
	}))
	require.NoError(t, c.Emit(&plugins.Output{Path: "a.css", Kind: plugins.KindStyle, Content: []byte("/* process.env.NODE_ENV */")}))
	require.NoError(t, c.RunEmitHooks(context.Background()))

	out, _ := c.Output("main.js")
	script := string(out.Content)
	assert.Contains(t, script, `const t = "Viewer"`)
	assert.Contains(t, script, "process.env.SECRET_TOKEN", "non-public values are not exposed")
	assert.Contains(t, script, `fetch("./" + "api/" + "1", "production")`)

	css, _ := c.Output("a.css")
	assert.Equal(t, "/* process.env.NODE_ENV */", string(css.Content))
}

func TestHTML(t *testing.T) {
	ctx := context.Background()

	t.Run("default_template", func(t *testing.T) {
		cfg, fs := setup(t, nil)
		cfg.Aliases = map[string]string{"pdfjs-dist": "node_modules/pdfjs-dist/build/pdf.mjs"}
		c := plugins.NewCompilation(cfg, fs, nil)
		apply(t, c, types.PluginSpec{Name: "html"})
		emitEntry(t, c)
		require.NoError(t, c.Emit(&plugins.Output{Path: "App.css", Kind: plugins.KindStyle, Content: []byte("p{}")}))
		require.NoError(t, c.Emit(&plugins.Output{
			Path: "vendor/pdfjs-dist/build/pdf.mjs", Kind: plugins.KindScript, Content: []byte("export{}"),
			From: "node_modules/pdfjs-dist/build/pdf.mjs",
		}))
		require.NoError(t, c.RunEmitHooks(ctx))

		out, ok := c.Output("index.html")
		require.True(t, ok)
		doc := string(out.Content)
		assert.Contains(t, doc, "<title>pdf-viewer</title>")
		assert.Contains(t, doc, `<link rel="stylesheet" href="./App.css">`)
		assert.Contains(t, doc, `"pdfjs-dist": "./vendor/pdfjs-dist/build/pdf.mjs"`)
		assert.Contains(t, doc, `<script type="module" src="./main.js"></script>`)
		assert.Less(t, strings.Index(doc, "importmap"), strings.Index(doc, "</head>"))
		assert.Less(t, strings.Index(doc, `src="./main.js"`), strings.Index(doc, "</body>"))
		assert.Greater(t, strings.Index(doc, `src="./main.js"`), strings.Index(doc, `<div id="app">`))
	})

	t.Run("public_template_and_assets", func(t *testing.T) {
		cfg, fs := setup(t, map[string]string{
			"public/index.html":  `<html><head><link rel="icon" href="<%= BASE_URL %>favicon.ico"></head><body></body></html>`,
			"public/favicon.ico": "ico",
		})
		cfg.PublicPath = "static/"
		c := plugins.NewCompilation(cfg, fs, nil)
		apply(t, c, types.PluginSpec{Name: "html"})
		emitEntry(t, c)
		require.NoError(t, c.RunEmitHooks(ctx))

		out, _ := c.Output("index.html")
		doc := string(out.Content)
		assert.Contains(t, doc, `href="static/favicon.ico"`)
		assert.Contains(t, doc, `src="static/main.js"`)
		assert.NotContains(t, doc, "<%=")

		icon, ok := c.Output("favicon.ico")
		require.True(t, ok)
		assert.Equal(t, plugins.OriginPublic, icon.Origin)
		assert.Equal(t, "/proj/public/favicon.ico", icon.Source)
	})

	t.Run("missing_entry", func(t *testing.T) {
		cfg, fs := setup(t, nil)
		c := plugins.NewCompilation(cfg, fs, nil)
		apply(t, c, types.PluginSpec{Name: "html"})
		err := c.RunEmitHooks(ctx)
		assert.True(t, errors.IsErrorCode(err, errors.ErrSourceMissing))
	})

	t.Run("alias_not_emitted", func(t *testing.T) {
		cfg, fs := setup(t, nil)
		cfg.Aliases = map[string]string{"vue": "node_modules/vue/dist/vue.esm-browser.js"}
		c := plugins.NewCompilation(cfg, fs, nil)
		apply(t, c, types.PluginSpec{Name: "html"})
		emitEntry(t, c)
		err := c.RunEmitHooks(ctx)
		assert.True(t, errors.IsErrorCode(err, errors.ErrSourceMissing))
	})
}

func TestCopyPatterns(t *testing.T) {
	cfg, fs := setup(t, map[string]string{"node_modules/pdfjs-dist/cmaps/78-H.bcmap": "x"})

	patterns, err := plugins.CopyPatterns(cfg)
	require.NoError(t, err)
	assert.Nil(t, patterns, "no copy plugin registered")

	cfg.Plugins = []types.PluginSpec{copySpec(map[string]interface{}{"from": "./node_modules/pdfjs-dist/cmaps/", "to": "pdfjs-dist/cmaps/"})}
	patterns, err = plugins.CopyPatterns(cfg)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "node_modules/pdfjs-dist/cmaps", patterns[0].From)

	mirrors, err := plugins.Plan(fs, cfg.Root, patterns[0])
	require.NoError(t, err)
	assert.Equal(t, []plugins.Mirror{{
		Source: "/proj/node_modules/pdfjs-dist/cmaps/78-H.bcmap",
		Target: "pdfjs-dist/cmaps/78-H.bcmap",
		From:   "node_modules/pdfjs-dist/cmaps/78-H.bcmap",
	}}, mirrors)
}
