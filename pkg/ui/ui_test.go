// Test Type: Unit Test
// Description: Tests for result rendering in text, terminal and JSON formats

package ui_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/pipeline"
	"github.com/arthur-debert/sfcbuild/pkg/plugins"
	"github.com/arthur-debert/sfcbuild/pkg/publish"
	"github.com/arthur-debert/sfcbuild/pkg/ui"
	"github.com/arthur-debert/sfcbuild/pkg/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		OutputDir: "/proj/dist",
		Outputs: []*plugins.Output{
			{Path: "main.js", Kind: plugins.KindScript, Origin: plugins.OriginSource, From: "src/main.js"},
			{Path: "pdfjs-dist/cmaps/78-H.bcmap", Kind: plugins.KindAsset, Origin: plugins.OriginCopy, From: "node_modules/pdfjs-dist/cmaps/78-H.bcmap"},
			{Path: "index.html", Kind: plugins.KindDocument, Origin: plugins.OriginGenerated},
		},
		Manifest: &pipeline.Manifest{
			PublicPath: "./",
			Files: map[string]pipeline.ManifestEntry{
				"main.js":                     {Size: 2048},
				"pdfjs-dist/cmaps/78-H.bcmap": {Size: 10},
				"index.html":                  {Size: 300},
			},
		},
		Warnings:    []string{"rule 1 matched no files"},
		Plugins:     []string{"vue", "copy", "html"},
		Target:      "es2020",
		Transformed: 1,
		Copied:      1,
		Bytes:       2358,
		CacheHits:   1,
		CacheMisses: 2,
		Duration:    1500 * time.Millisecond,
	}
}

func TestNewRenderer(t *testing.T) {
	for _, format := range []ui.Format{ui.FormatAuto, ui.FormatTerminal, ui.FormatText, ui.FormatJSON} {
		r, err := ui.NewRenderer(format, &bytes.Buffer{})
		require.NoError(t, err, format.String())
		assert.NotNil(t, r)
	}
	_, err := ui.NewRenderer(ui.Format(999), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestTextRenderer(t *testing.T) {
	var buf bytes.Buffer
	r, err := ui.NewRenderer(ui.FormatText, &buf)
	require.NoError(t, err)

	t.Run("build", func(t *testing.T) {
		buf.Reset()
		require.NoError(t, r.RenderBuild(sampleResult()))
		out := buf.String()
		assert.Contains(t, out, "Built /proj/dist in 1.5s")
		assert.Contains(t, out, "3 files, 2.4 kB (1 transformed, 1 copied)")
		assert.Contains(t, out, "cache: 1 hits, 2 misses")
		assert.Contains(t, out, "! rule 1 matched no files")
		assert.NotContains(t, out, "\x1b[")
	})

	t.Run("verify", func(t *testing.T) {
		buf.Reset()
		report := &verify.Report{OutputDir: "/proj/dist", Problems: []verify.Problem{{Path: "stray.js", Message: "not listed in the manifest"}}}
		require.NoError(t, r.RenderVerify(report))
		assert.Contains(t, buf.String(), "failed verification with 1 problems")
		assert.Contains(t, buf.String(), "stray.js: not listed in the manifest")
	})

	t.Run("publish", func(t *testing.T) {
		buf.Reset()
		require.NoError(t, r.RenderPublish(&publish.Summary{Bucket: "viewer", Keys: []string{"a", "b"}, Bytes: 1000}))
		assert.Contains(t, buf.String(), "Published 2 objects (1.0 kB) to viewer")
	})

	t.Run("error", func(t *testing.T) {
		buf.Reset()
		err := errors.New(errors.ErrAssetSourceMissing, "copy source node_modules/pdfjs-dist/cmaps does not exist").
			WithPath("/proj/node_modules/pdfjs-dist/cmaps")
		require.NoError(t, r.RenderError(err))
		out := buf.String()
		assert.Contains(t, out, "Error: [ASSET_SOURCE_MISSING]")
		assert.Contains(t, out, "path: /proj/node_modules/pdfjs-dist/cmaps")
		assert.Contains(t, out, "resource error, exit status 3")
	})

	t.Run("plan", func(t *testing.T) {
		buf.Reset()
		require.NoError(t, r.RenderPlan(sampleResult()))
		assert.Equal(t, ui.PlanMarkdown(sampleResult()), buf.String())
	})
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	r, err := ui.NewRenderer(ui.FormatJSON, &buf)
	require.NoError(t, err)

	require.NoError(t, r.RenderBuild(sampleResult()))
	var build struct {
		Files []struct {
			Path   string `json:"path"`
			Origin string `json:"origin"`
			Size   int64  `json:"size"`
		} `json:"files"`
		Plugins    []string `json:"plugins"`
		DurationMS int64    `json:"duration_ms"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &build))
	require.Len(t, build.Files, 3)
	assert.Equal(t, "index.html", build.Files[0].Path)
	assert.Equal(t, int64(2048), build.Files[1].Size)
	assert.Equal(t, []string{"vue", "copy", "html"}, build.Plugins)
	assert.Equal(t, int64(1500), build.DurationMS)

	buf.Reset()
	require.NoError(t, r.RenderError(errors.New(errors.ErrPluginMissing, "vue plugin required")))
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	assert.Equal(t, "PLUGIN_MISSING", payload["code"])
	assert.Equal(t, "config", payload["category"])
	assert.Equal(t, float64(2), payload["exit_code"])
}

func TestPlanMarkdown(t *testing.T) {
	doc := ui.PlanMarkdown(sampleResult())
	assert.Contains(t, doc, "# Build plan")
	assert.Contains(t, doc, "Plugins, in order: `vue`, `copy`, `html`.")
	assert.Contains(t, doc, "| `main.js` | source | src/main.js | 2.0 kB |")
	assert.Contains(t, doc, "| `index.html` | generated | - | 300 B |")
	assert.Contains(t, doc, "- rule 1 matched no files")
}

func TestStartProgress_NotInteractive(t *testing.T) {
	p := ui.StartProgress(&bytes.Buffer{}, "building")
	p.Stop()
	p.Stop()
	assert.False(t, ui.Interactive(&bytes.Buffer{}))
}
