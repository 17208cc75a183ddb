// Package watch rebuilds a project when its inputs change. Bursts of file
// events are debounced into one rebuild.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/arthur-debert/sfcbuild/pkg/config"
	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/logging"
	"github.com/arthur-debert/sfcbuild/pkg/pipeline"
	"github.com/arthur-debert/sfcbuild/pkg/rules"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiet period before a rebuild starts
const DefaultDebounce = 150 * time.Millisecond

// Source delivers file system events
type Source interface {
	Events() <-chan fsnotify.Event
	Errors() <-chan error
	Add(name string) error
	Close() error
}

// BuildFunc runs one build
type BuildFunc func(ctx context.Context) (*pipeline.Result, error)

// Event reports one rebuild
type Event struct {
	// Paths are the changed files that triggered the rebuild
	Paths  []string
	Result *pipeline.Result
	Err    error
}

// Options configures a Watcher
type Options struct {
	Debounce time.Duration
}

// Watcher runs a BuildFunc whenever watched inputs change
type Watcher struct {
	source    Source
	build     BuildFunc
	debounce  time.Duration
	root      string
	outputDir string
	logger    zerolog.Logger
}

// New watches the source directory, the include scopes of every rule, the
// public directory and the project root (for configuration files) of cfg
func New(cfg *types.Pipeline, build BuildFunc, opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to create file watcher")
	}
	w := NewWithSource(&notifier{fw}, cfg, build, opts)

	if err := w.source.Add(cfg.Root); err != nil {
		_ = fw.Close()
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to watch %s", cfg.Root).WithPath(cfg.Root)
	}
	for _, dir := range Dirs(cfg) {
		if err := w.addTree(dir); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// NewWithSource creates a watcher over an existing event source
func NewWithSource(src Source, cfg *types.Pipeline, build BuildFunc, opts Options) *Watcher {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		source:    src,
		build:     build,
		debounce:  debounce,
		root:      filepath.Clean(cfg.Root),
		outputDir: pipeline.OutputDir(cfg),
		logger:    logging.GetLogger("watch"),
	}
}

// Dirs lists the absolute directories whose trees are watched
func Dirs(cfg *types.Pipeline) []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(rel string) {
		dir := filepath.Join(cfg.Root, filepath.FromSlash(rel))
		if rel == "" || seen[dir] {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	add(cfg.SourceDir)
	add(cfg.PublicDir)
	if matcher, err := rules.Compile(cfg.Rules, cfg.SourceDir); err == nil {
		for _, base := range matcher.Bases() {
			add(base)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// Run waits for changes and rebuilds until ctx is done or the source closes.
// onBuild is called after every rebuild.
func (w *Watcher) Run(ctx context.Context, onBuild func(Event)) error {
	defer func() {
		_ = w.source.Close()
	}()

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.source.Events():
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.logger.Warn().Err(err).Str("dir", ev.Name).Msg("Failed to watch new directory")
					}
				}
			}
			w.logger.Trace().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("Change detected")
			pending[ev.Name] = true
			timer.Reset(w.debounce)

		case err, ok := <-w.source.Errors():
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Watcher error")

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]bool)

			w.logger.Info().Int("changes", len(paths)).Msg("Rebuilding")
			res, err := w.build(ctx)
			if ctx.Err() != nil {
				return nil
			}
			if onBuild != nil {
				onBuild(Event{Paths: paths, Result: res, Err: err})
			}
		}
	}
}

// relevant drops events caused by the build itself and bare permission changes
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(ev.Name)
	if name == w.outputDir || strings.HasPrefix(name, w.outputDir+".") ||
		strings.HasPrefix(name, w.outputDir+string(filepath.Separator)) {
		return false
	}
	base := filepath.Base(name)
	if base == ".git" || strings.HasSuffix(base, "~") || strings.HasPrefix(base, ".#") {
		return false
	}
	if filepath.Dir(name) == w.root && !isInput(base) {
		// the project root is watched for configuration files only
		return false
	}
	return true
}

func isInput(base string) bool {
	if base == rules.IgnoreFile {
		return true
	}
	for _, name := range append(append([]string(nil), config.ProjectFiles...), config.DotenvFiles...) {
		if base == name {
			return true
		}
	}
	return false
}

// addTree watches dir and every directory below it; fsnotify is not recursive
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == dir {
				w.logger.Debug().Str("dir", dir).Msg("Watched directory does not exist")
				return filepath.SkipDir
			}
			return errors.Wrapf(err, errors.ErrFileAccess, "failed to walk %s", p).WithPath(p)
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" || filepath.Clean(p) == w.outputDir {
			return filepath.SkipDir
		}
		if err := w.source.Add(p); err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "failed to watch %s", p).WithPath(p)
		}
		return nil
	})
}

type notifier struct {
	w *fsnotify.Watcher
}

func (n *notifier) Events() <-chan fsnotify.Event { return n.w.Events }
func (n *notifier) Errors() <-chan error          { return n.w.Errors }
func (n *notifier) Add(name string) error         { return n.w.Add(name) }
func (n *notifier) Close() error                  { return n.w.Close() }
