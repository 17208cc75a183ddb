package testutil

import (
	"path/filepath"
	"testing"

	"github.com/arthur-debert/sfcbuild/pkg/filesystem"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// MemoryRoot is the project root of in-memory projects
const MemoryRoot = "/proj"

// TestProject is a project tree for a test
type TestProject struct {
	FS   afero.Fs
	Root string
}

// NewMemoryProject creates a project on an in-memory filesystem
func NewMemoryProject(t *testing.T, files map[string]string) *TestProject {
	t.Helper()
	p := &TestProject{FS: filesystem.NewMemory(), Root: MemoryRoot}
	p.AddFiles(t, files)
	return p
}

// NewDiskProject creates a project in a temporary directory
func NewDiskProject(t *testing.T, files map[string]string) *TestProject {
	t.Helper()
	p := &TestProject{FS: filesystem.NewOS(), Root: t.TempDir()}
	p.AddFiles(t, files)
	return p
}

// Path returns the absolute path of a slash-separated project path
func (p *TestProject) Path(rel string) string {
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// AddFile writes a file, creating its parents
func (p *TestProject) AddFile(t *testing.T, rel, content string) string {
	t.Helper()
	path := p.Path(rel)
	require.NoError(t, p.FS.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, afero.WriteFile(p.FS, path, []byte(content), 0644))
	return path
}

func (p *TestProject) AddFiles(t *testing.T, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p.AddFile(t, rel, content)
	}
}

// ReadFile reads a project file
func (p *TestProject) ReadFile(t *testing.T, rel string) string {
	t.Helper()
	data, err := afero.ReadFile(p.FS, p.Path(rel))
	require.NoError(t, err)
	return string(data)
}

// Exists reports whether a project path exists
func (p *TestProject) Exists(t *testing.T, rel string) bool {
	t.Helper()
	exists, _, err := filesystem.Stat(p.FS, p.Path(rel))
	require.NoError(t, err)
	return exists
}

// ViewerFiles are the inputs of the viewer build
var ViewerFiles = map[string]string{
	"src/main.js": "console.log('viewer')\n",
	"node_modules/pdfjs-dist/cmaps/78-H.bcmap": "\x00\x01",
}

// ViewerConfig is ViewerPipeline as a project file
const ViewerConfig = `
executor = "direct"

[[plugins]]
name = "copy"
[plugins.options]
patterns = [{ from = "node_modules/pdfjs-dist/cmaps/", to = "pdfjs-dist/cmaps/" }]

[[plugins]]
name = "html"
`

// ViewerPipeline returns a production build of root that mirrors the
// pdfjs character maps to pdfjs-dist/cmaps/ and emits index.html
func ViewerPipeline(root string) *types.Pipeline {
	return &types.Pipeline{
		Root:          root,
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
}
