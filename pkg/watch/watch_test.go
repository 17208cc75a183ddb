// Test Type: Unit Test
// Description: Tests for debounced rebuilds driven by file events

package watch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/arthur-debert/sfcbuild/pkg/pipeline"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/arthur-debert/sfcbuild/pkg/watch"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	events chan fsnotify.Event
	errs   chan error

	mu     sync.Mutex
	added  []string
	closed bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan fsnotify.Event, 16), errs: make(chan error, 1)}
}

func (f *fakeSource) Events() <-chan fsnotify.Event { return f.events }
func (f *fakeSource) Errors() <-chan error          { return f.errs }

func (f *fakeSource) Add(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, name)
	return nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func testConfig(root string) *types.Pipeline {
	return &types.Pipeline{
		Root:          root,
		SourceDir:     "src",
		DependencyDir: "node_modules",
		PublicDir:     "public",
		OutputDir:     "dist",
		Rules: []types.TransformRule{{
			Name: "pdfjs", Test: `\.mjs$`, Include: []string{"node_modules/pdfjs-dist"}, Tool: "esbuild",
		}},
	}
}

type recorder struct {
	mu     sync.Mutex
	events []watch.Event
}

func (r *recorder) record(ev watch.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) get() []watch.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]watch.Event(nil), r.events...)
}

func start(t *testing.T, src *fakeSource, cfg *types.Pipeline, build watch.BuildFunc) (*recorder, context.CancelFunc, chan error) {
	t.Helper()
	w := watch.NewWithSource(src, cfg, build, watch.Options{Debounce: 30 * time.Millisecond})
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, rec.record) }()
	t.Cleanup(cancel)
	return rec, cancel, done
}

func TestRun_DebouncesBursts(t *testing.T) {
	src := newFakeSource()
	var builds int
	var mu sync.Mutex
	build := func(ctx context.Context) (*pipeline.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		builds++
		return &pipeline.Result{Transformed: builds}, nil
	}
	rec, cancel, done := start(t, src, testConfig("/proj"), build)

	src.events <- fsnotify.Event{Name: "/proj/src/App.vue", Op: fsnotify.Write}
	src.events <- fsnotify.Event{Name: "/proj/src/main.js", Op: fsnotify.Write}
	src.events <- fsnotify.Event{Name: "/proj/src/App.vue", Op: fsnotify.Write}

	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, 2*time.Second, 10*time.Millisecond)
	ev := rec.get()[0]
	assert.Equal(t, []string{"/proj/src/App.vue", "/proj/src/main.js"}, ev.Paths)
	assert.NoError(t, ev.Err)
	assert.Equal(t, 1, ev.Result.Transformed)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.True(t, src.closed)
}

func TestRun_IgnoresOwnOutput(t *testing.T) {
	src := newFakeSource()
	build := func(ctx context.Context) (*pipeline.Result, error) { return &pipeline.Result{}, nil }
	rec, _, _ := start(t, src, testConfig("/proj"), build)

	for _, name := range []string{
		"/proj/dist/main.js",
		"/proj/dist.staging-123/index.html",
		"/proj/dist.previous-123",
		"/proj/README.md",
		"/proj/src/.#App.vue",
	} {
		src.events <- fsnotify.Event{Name: name, Op: fsnotify.Create}
	}
	src.events <- fsnotify.Event{Name: "/proj/src/main.js", Op: fsnotify.Chmod}

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, rec.get())

	src.events <- fsnotify.Event{Name: "/proj/sfcbuild.toml", Op: fsnotify.Write}
	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"/proj/sfcbuild.toml"}, rec.get()[0].Paths)
}

func TestRun_ReportsBuildErrors(t *testing.T) {
	src := newFakeSource()
	boom := errors.New("transform failed")
	build := func(ctx context.Context) (*pipeline.Result, error) { return nil, boom }
	rec, _, _ := start(t, src, testConfig("/proj"), build)

	src.errs <- errors.New("queue overflow")
	src.events <- fsnotify.Event{Name: "/proj/src/main.js", Op: fsnotify.Write}

	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, rec.get()[0].Err, boom)
}

func TestRun_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "src", "components")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "icons"), 0755))

	src := newFakeSource()
	build := func(ctx context.Context) (*pipeline.Result, error) { return &pipeline.Result{}, nil }
	rec, _, _ := start(t, src, testConfig(root), build)

	src.events <- fsnotify.Event{Name: dir, Op: fsnotify.Create}
	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, 2*time.Second, 10*time.Millisecond)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, []string{dir, filepath.Join(dir, "icons")}, src.added)
}

func TestRun_SourceClosed(t *testing.T) {
	src := newFakeSource()
	w := watch.NewWithSource(src, testConfig("/proj"), nil, watch.Options{})
	close(src.events)
	assert.NoError(t, w.Run(context.Background(), nil))
}

func TestDirs(t *testing.T) {
	assert.Equal(t, []string{
		"/proj/node_modules/pdfjs-dist",
		"/proj/public",
		"/proj/src",
	}, watch.Dirs(testConfig("/proj")))
}
