package plugins

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/logging"
	"github.com/arthur-debert/sfcbuild/pkg/rules"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Kind classifies an output
type Kind string

const (
	KindScript   Kind = "script"
	KindStyle    Kind = "style"
	KindAsset    Kind = "asset"
	KindDocument Kind = "document"
)

// Origins recorded in the asset manifest
const (
	OriginSource     = "source"
	OriginDependency = "dependency"
	OriginCopy       = "copy"
	OriginPublic     = "public"
	OriginGenerated  = "generated"
)

// Output is one file of the bundle
type Output struct {
	// Path is slash-separated and relative to the output directory
	Path string
	Kind Kind

	// Content holds the bytes to write. When nil, Source is copied verbatim.
	Content []byte
	Source  string

	// From is the project-relative input the output was produced from
	From   string
	Origin string
}

// Module is what a loader turns an input file into. Path is a
// project-relative virtual path whose extension names the language, so
// transform rules can match it.
type Module struct {
	Path    string
	Content []byte
	Kind    Kind
}

// Loader compiles one input file into modules
type Loader func(ctx context.Context, file rules.File, content []byte) ([]Module, error)

// EmitHook runs after every module has been emitted, in plugin order
type EmitHook func(ctx context.Context, c *Compilation) error

type emitHook struct {
	plugin string
	fn     EmitHook
}

// Compilation is the state plugins hook into during one build
type Compilation struct {
	Config *types.Pipeline
	FS     afero.Fs
	Inputs *rules.ScanResult

	mu          sync.Mutex
	applying    string
	loaders     map[string]Loader
	loaderOwner map[string]string
	hooks       []emitHook
	outputs     map[string]*Output
	warnings    []string
	logger      zerolog.Logger
}

// NewCompilation creates the hook state of a build
func NewCompilation(cfg *types.Pipeline, fs afero.Fs, inputs *rules.ScanResult) *Compilation {
	if inputs == nil {
		inputs = &rules.ScanResult{}
	}
	return &Compilation{
		Config:      cfg,
		FS:          fs,
		Inputs:      inputs,
		loaders:     make(map[string]Loader),
		loaderOwner: make(map[string]string),
		outputs:     make(map[string]*Output),
		logger:      logging.GetLogger("plugins"),
	}
}

// Loader registers the loader of a file extension such as ".vue"
func (c *Compilation) Loader(ext string, fn Loader) error {
	ext = strings.ToLower(ext)
	c.mu.Lock()
	defer c.mu.Unlock()
	if owner, ok := c.loaderOwner[ext]; ok {
		return errors.Newf(errors.ErrConfigInvalid, "%s files are already loaded by plugin %s", ext, owner)
	}
	c.loaders[ext] = fn
	c.loaderOwner[ext] = c.applying
	return nil
}

// LoaderFor returns the loader registered for the file's extension
func (c *Compilation) LoaderFor(rel string) (Loader, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn, ok := c.loaders[strings.ToLower(path.Ext(rel))]
	return fn, ok
}

// OnEmit registers a hook that runs once modules are emitted
func (c *Compilation) OnEmit(fn EmitHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, emitHook{plugin: c.applying, fn: fn})
}

// RunEmitHooks runs every emit hook in registration order
func (c *Compilation) RunEmitHooks(ctx context.Context) error {
	c.mu.Lock()
	hooks := append([]emitHook(nil), c.hooks...)
	c.mu.Unlock()

	for _, hook := range hooks {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrCanceled, "build canceled")
		}
		c.logger.Debug().Str("plugin", hook.plugin).Msg("Running emit hook")
		if err := hook.fn(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// Emit adds an output. Two outputs may not share a path.
func (c *Compilation) Emit(out *Output) error {
	clean, err := cleanOutputPath(out.Path)
	if err != nil {
		return err
	}
	out.Path = clean

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.outputs[clean]; ok {
		return errors.Newf(errors.ErrConfigInvalid,
			"output %s is produced twice (from %s and %s)", clean, describe(existing), describe(out)).
			WithDetail("output", clean)
	}
	c.outputs[clean] = out
	return nil
}

// Replace swaps the content of an existing output
func (c *Compilation) Replace(p string, content []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, ok := c.outputs[p]
	if !ok {
		return errors.Newf(errors.ErrInternal, "no output %s to replace", p)
	}
	out.Content = content
	out.Source = ""
	return nil
}

// Output looks up an output by path
func (c *Compilation) Output(p string) (*Output, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, ok := c.outputs[p]
	return out, ok
}

// OutputFrom returns the output of the given kind produced from a
// project-relative input
func (c *Compilation) OutputFrom(from string, kind Kind) (*Output, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var found *Output
	for _, out := range c.outputs {
		if out.From == from && out.Kind == kind && (found == nil || out.Path < found.Path) {
			found = out
		}
	}
	return found, found != nil
}

// Outputs returns every output sorted by path
func (c *Compilation) Outputs() []*Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := make([]*Output, 0, len(c.outputs))
	for _, out := range c.outputs {
		list = append(list, out)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Path < list[j].Path })
	return list
}

// Warn records a non-fatal problem that is reported with the build result
func (c *Compilation) Warn(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, msg)
	c.logger.Warn().Str("plugin", c.applying).Msg(msg)
}

// Warnings returns the recorded warnings
func (c *Compilation) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.warnings...)
}

func (c *Compilation) setApplying(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applying = name
}

func describe(out *Output) string {
	if out.From != "" {
		return out.From
	}
	if out.Source != "" {
		return out.Source
	}
	return out.Origin
}

// cleanOutputPath keeps outputs inside the output directory
func cleanOutputPath(p string) (string, error) {
	p = strings.ReplaceAll(p, `\`, "/")
	clean := path.Clean(strings.TrimPrefix(p, "./"))
	if p == "" || clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.Newf(errors.ErrConfigInvalid, "output path %q escapes the output directory", p)
	}
	return clean, nil
}
