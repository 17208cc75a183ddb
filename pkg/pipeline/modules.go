package pipeline

import (
	"context"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/filesystem"
	"github.com/arthur-debert/sfcbuild/pkg/metrics"
	"github.com/arthur-debert/sfcbuild/pkg/plugins"
	"github.com/arthur-debert/sfcbuild/pkg/rules"
	"github.com/arthur-debert/sfcbuild/pkg/transform"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// VendorDir receives dependency files, relative to the output directory
const VendorDir = "vendor"

// typedExts are compiled to plain JavaScript before any rule runs
var typedExts = map[string]bool{".ts": true, ".tsx": true, ".jsx": true, ".mts": true, ".cts": true}

var scriptExts = map[string]bool{".js": true, ".mjs": true, ".cjs": true}

// relativeImport matches relative specifiers of modules that are renamed to .js
var relativeImport = regexp.MustCompile(`((?:\bfrom|\bimport)\s*\(?\s*["'])(\.\.?/[^"'\n]+?)\.(?:vue|ts|tsx|jsx|mts|cts)(["'])`)

// module is one unit of output produced from an input file
type module struct {
	file rules.File

	// path is the project-relative virtual path rules match against
	path    string
	content []byte
	kind    plugins.Kind

	// verbatim modules are copied from file.Path without being read
	verbatim bool
}

type builder struct {
	cfg          *types.Pipeline
	fs           afero.Fs
	engine       *transform.Engine
	matcher      *rules.Matcher
	comp         *plugins.Compilation
	aliasTargets map[string]bool
	limit        int
	metrics      *metrics.Collector
	logger       zerolog.Logger
}

// load reads every input that ends up in the bundle and runs the loaders.
// Dependency files are only loaded when a rule or an alias claims them.
func (b *builder) load(ctx context.Context, files []rules.File) ([]*module, error) {
	loaded := make([][]*module, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)
	for i, file := range files {
		if !b.wanted(file) {
			continue
		}
		g.Go(func() error {
			mods, err := b.loadFile(gctx, file)
			if err != nil {
				return err
			}
			loaded[i] = mods
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, canceled(ctx, err)
	}

	var modules []*module
	for _, mods := range loaded {
		modules = append(modules, mods...)
	}
	return modules, nil
}

func (b *builder) wanted(file rules.File) bool {
	if file.Origin == rules.OriginSource || b.aliasTargets[file.Rel] {
		return true
	}
	return len(b.matcher.Match(file.Rel)) > 0
}

func (b *builder) loadFile(ctx context.Context, file rules.File) ([]*module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loader, hasLoader := b.comp.LoaderFor(file.Rel)
	kind := kindOf(file.Rel)
	if !hasLoader && kind == plugins.KindAsset && len(b.matcher.Match(file.Rel)) == 0 {
		return []*module{{file: file, path: file.Rel, kind: kind, verbatim: true}}, nil
	}

	content, err := afero.ReadFile(b.fs, file.Path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", file.Rel).WithPath(file.Path)
	}

	if !hasLoader {
		return b.compileTyped(ctx, []*module{{file: file, path: file.Rel, content: content, kind: kind}})
	}

	produced, err := loader(ctx, file, content)
	if err != nil {
		return nil, err
	}
	mods := make([]*module, 0, len(produced))
	for _, m := range produced {
		mods = append(mods, &module{file: file, path: m.Path, content: m.Content, kind: m.Kind})
	}
	b.logger.Debug().Str("path", file.Rel).Int("modules", len(mods)).Msg("Loaded component")
	return b.compileTyped(ctx, mods)
}

// compileTyped strips types and JSX so rules only ever see JavaScript
func (b *builder) compileTyped(ctx context.Context, mods []*module) ([]*module, error) {
	for _, m := range mods {
		ext := strings.ToLower(path.Ext(m.path))
		if !typedExts[ext] {
			continue
		}
		out, err := b.engine.Run(ctx, transform.ToolEsbuild, m.path, m.content, nil)
		if err != nil {
			return nil, err
		}
		b.metrics.ModuleTransformed(transform.ToolEsbuild)
		m.content = out
		m.path = strings.TrimSuffix(m.path, path.Ext(m.path)) + ".js"
		m.kind = plugins.KindScript
	}
	return mods, nil
}

// transform runs the rule chains and emits one output per module. It
// returns how many modules went through at least one rule.
func (b *builder) transform(ctx context.Context, modules []*module, res rules.Resolution) (int, error) {
	counts := make([]int, len(modules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)
	for i, m := range modules {
		g.Go(func() error {
			chain := res.ByFile[m.path]
			if len(chain) > 0 {
				out, err := b.engine.Apply(gctx, m.path, m.content, chain)
				if err != nil {
					return err
				}
				m.content = out
				counts[i] = 1
				for _, rule := range chain {
					b.metrics.ModuleTransformed(rule.Tool)
				}
			}
			return b.emit(m)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, canceled(ctx, err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func (b *builder) emit(m *module) error {
	origin := plugins.OriginSource
	if m.file.Origin == rules.OriginDependency {
		origin = plugins.OriginDependency
	}
	out := &plugins.Output{
		Path:   outputPath(b.cfg, m.path, m.file.Origin),
		Kind:   m.kind,
		From:   m.file.Rel,
		Origin: origin,
	}
	if m.verbatim {
		out.Source = m.file.Path
	} else {
		out.Content = m.content
		if m.kind == plugins.KindScript {
			out.Content = rewriteImports(m.content)
		}
	}
	return b.comp.Emit(out)
}

// outputPath maps a project-relative module path into the output directory:
// sources keep their path below the source directory, everything else goes
// under VendorDir.
func outputPath(cfg *types.Pipeline, rel string, origin rules.Origin) string {
	sourceDir := cleanRel(cfg.SourceDir)
	depDir := cleanRel(cfg.DependencyDir)
	switch {
	case origin == rules.OriginSource && sourceDir == ".":
		return rel
	case origin == rules.OriginSource && strings.HasPrefix(rel, sourceDir+"/"):
		return strings.TrimPrefix(rel, sourceDir+"/")
	case strings.HasPrefix(rel, depDir+"/"):
		return path.Join(VendorDir, strings.TrimPrefix(rel, depDir+"/"))
	}
	return path.Join(VendorDir, rel)
}

// rewriteImports points relative component and TypeScript imports at the
// emitted .js modules
func rewriteImports(content []byte) []byte {
	return relativeImport.ReplaceAll(content, []byte("${1}${2}.js${3}"))
}

func kindOf(rel string) plugins.Kind {
	ext := strings.ToLower(path.Ext(rel))
	switch {
	case scriptExts[ext] || typedExts[ext]:
		return plugins.KindScript
	case ext == ".css":
		return plugins.KindStyle
	}
	return plugins.KindAsset
}

func modulePaths(modules []*module) []string {
	paths := make([]string, len(modules))
	for i, m := range modules {
		paths[i] = m.path
	}
	return paths
}

// addAliasTargets makes sure every alias target is an input, even when it
// lies outside the scanned scopes
func addAliasTargets(fs afero.Fs, cfg *types.Pipeline, inputs *rules.ScanResult) (map[string]bool, error) {
	targets := make(map[string]bool, len(cfg.Aliases))
	known := make(map[string]bool, len(inputs.Files))
	for _, f := range inputs.Files {
		known[f.Rel] = true
	}
	aliases := make([]string, 0, len(cfg.Aliases))
	for alias := range cfg.Aliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		rel := cleanRel(cfg.Aliases[alias])
		targets[rel] = true
		if known[rel] {
			continue
		}
		abs := filepath.Join(cfg.Root, filepath.FromSlash(rel))
		exists, isDir, err := filesystem.Stat(fs, abs)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to stat alias target %s", rel).WithPath(abs)
		}
		if !exists || isDir {
			return nil, errors.Newf(errors.ErrSourceMissing, "alias %s points at %s which does not exist", alias, rel).
				WithPath(abs).
				WithDetail("alias", alias)
		}
		info, err := fs.Stat(abs)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to stat alias target %s", rel).WithPath(abs)
		}
		inputs.Files = append(inputs.Files, rules.File{
			Rel:    rel,
			Path:   abs,
			Origin: rules.OriginDependency,
			Size:   info.Size(),
		})
		known[rel] = true
	}
	return targets, nil
}

// canceled reports cancellation of the caller's context as such rather than
// as whatever error the interrupted step produced
func canceled(ctx context.Context, err error) error {
	if ctx.Err() != nil && !errors.IsErrorCode(err, errors.ErrCanceled) {
		return errors.Wrap(ctx.Err(), errors.ErrCanceled, "build canceled")
	}
	return err
}

func cleanRel(p string) string {
	return strings.TrimSuffix(path.Clean(strings.TrimPrefix(filepath.ToSlash(p), "./")), "/")
}
