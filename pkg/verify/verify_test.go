// Test Type: Integration Test
// Description: Tests for post-build verification of emitted bundles

package verify_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/filesystem"
	"github.com/arthur-debert/sfcbuild/pkg/pipeline"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/arthur-debert/sfcbuild/pkg/verify"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func built(t *testing.T) (afero.Fs, *types.Pipeline) {
	t.Helper()
	fs := filesystem.NewMemory()
	for rel, content := range map[string]string{
		"src/main.js":                              "console.log('viewer')\n",
		"src/style.css":                            ".page { background: url(./paper.png) }\n",
		"src/paper.png":                            "png",
		"node_modules/pdfjs-dist/cmaps/78-H.bcmap": "\x00\x01",
		"node_modules/pdfjs-dist/cmaps/Add-H.bcmap": "\x02",
	} {
		p := filepath.Join("/proj", filepath.FromSlash(rel))
		require.NoError(t, fs.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0644))
	}
	cfg := &types.Pipeline{
		Root:          "/proj",
		SourceDir:     "src",
		DependencyDir: "node_modules",
		PublicDir:     "public",
		OutputDir:     "dist",
		PublicPath:    "./",
		Entry:         "main.js",
		Mode:          types.ModeProduction,
		Executor:      types.ExecutorDirect,
		Target:        types.TargetDescriptor{Platform: types.PlatformWeb, ESModules: true},
		Plugins: []types.PluginSpec{
			{Name: "copy", Options: map[string]interface{}{
				"patterns": []interface{}{
					map[string]interface{}{"from": "node_modules/pdfjs-dist/cmaps/", "to": "pdfjs-dist/cmaps/"},
				},
			}},
			{Name: "html"},
		},
	}
	_, err := pipeline.Build(context.Background(), cfg, pipeline.Options{FS: fs})
	require.NoError(t, err)
	return fs, cfg
}

func problems(r *verify.Report) string {
	var lines []string
	for _, p := range r.Problems {
		lines = append(lines, p.String())
	}
	return strings.Join(lines, "\n")
}

func TestVerify_CleanBundle(t *testing.T) {
	fs, cfg := built(t)

	report, err := verify.Verify(fs, cfg)
	require.NoError(t, err)
	assert.True(t, report.OK(), problems(report))
	assert.NoError(t, report.Err())
	assert.Equal(t, 2, report.Mirrored)
	assert.Equal(t, 6, report.Files)
}

func TestVerify_Problems(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(t *testing.T, fs afero.Fs)
		want   string
	}{
		{
			name: "mirror_differs",
			tamper: func(t *testing.T, fs afero.Fs) {
				require.NoError(t, afero.WriteFile(fs, "/proj/dist/pdfjs-dist/cmaps/78-H.bcmap", []byte("\x09\x09"), 0644))
			},
			want: "pdfjs-dist/cmaps/78-H.bcmap: differs from node_modules/pdfjs-dist/cmaps/78-H.bcmap",
		},
		{
			name: "mirror_missing",
			tamper: func(t *testing.T, fs afero.Fs) {
				require.NoError(t, fs.Remove("/proj/dist/pdfjs-dist/cmaps/Add-H.bcmap"))
			},
			want: "pdfjs-dist/cmaps/Add-H.bcmap: listed in the manifest but missing",
		},
		{
			name: "unlisted_file",
			tamper: func(t *testing.T, fs afero.Fs) {
				require.NoError(t, afero.WriteFile(fs, "/proj/dist/stray.js", []byte("x"), 0644))
			},
			want: "stray.js: not listed in the manifest",
		},
		{
			name: "rooted_reference",
			tamper: func(t *testing.T, fs afero.Fs) {
				p := "/proj/dist/index.html"
				doc, err := afero.ReadFile(fs, p)
				require.NoError(t, err)
				doc = []byte(strings.Replace(string(doc), `src="./main.js"`, `src="/main.js"`, 1))
				require.NoError(t, afero.WriteFile(fs, p, doc, 0644))
			},
			want: `index.html: reference "/main.js" is rooted`,
		},
		{
			name: "dangling_stylesheet_reference",
			tamper: func(t *testing.T, fs afero.Fs) {
				require.NoError(t, fs.Remove("/proj/dist/paper.png"))
			},
			want: `style.css: reference "./paper.png" points at a file the bundle does not contain`,
		},
		{
			name: "unlisted_stylesheet_reference",
			tamper: func(t *testing.T, fs afero.Fs) {
				p := "/proj/dist/style.css"
				require.NoError(t, afero.WriteFile(fs, p, []byte(".page { background: url(./missing.png) }\n"), 0644))
			},
			want: `style.css: reference "./missing.png" points at a file the bundle does not contain`,
		},
		{
			name: "incomplete_marker",
			tamper: func(t *testing.T, fs afero.Fs) {
				require.NoError(t, afero.WriteFile(fs, "/proj/dist/"+pipeline.IncompleteMarker, []byte("x"), 0644))
			},
			want: "output is marked incomplete",
		},
		{
			name: "manifest_missing",
			tamper: func(t *testing.T, fs afero.Fs) {
				require.NoError(t, fs.Remove("/proj/dist/"+pipeline.ManifestFile))
			},
			want: pipeline.ManifestFile + ":",
		},
		{
			name: "output_missing",
			tamper: func(t *testing.T, fs afero.Fs) {
				require.NoError(t, fs.RemoveAll("/proj/dist"))
			},
			want: "output directory does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, cfg := built(t)
			tt.tamper(t, fs)

			report, err := verify.Verify(fs, cfg)
			require.NoError(t, err)
			assert.False(t, report.OK())
			assert.Contains(t, problems(report), tt.want)

			reportErr := report.Err()
			assert.True(t, errors.IsErrorCode(reportErr, errors.ErrVerify))
			assert.Equal(t, 3, errors.ExitCode(reportErr))
		})
	}
}
