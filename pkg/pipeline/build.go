package pipeline

import (
	"context"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/arthur-debert/sfcbuild/pkg/config"
	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/filesystem"
	"github.com/arthur-debert/sfcbuild/pkg/logging"
	"github.com/arthur-debert/sfcbuild/pkg/metrics"
	"github.com/arthur-debert/sfcbuild/pkg/plugins"
	"github.com/arthur-debert/sfcbuild/pkg/registry"
	"github.com/arthur-debert/sfcbuild/pkg/rules"
	"github.com/arthur-debert/sfcbuild/pkg/target"
	"github.com/arthur-debert/sfcbuild/pkg/transform"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Options controls a build
type Options struct {
	// FS holds the project and receives the bundle; defaults to the OS filesystem
	FS afero.Fs

	// Tools and Plugins default to the built-in registries
	Tools   registry.Registry[transform.Tool]
	Plugins registry.Registry[plugins.Factory]

	// Engine is reused across rebuilds so its cache survives. When set, its
	// tool registry wins over Tools.
	Engine *transform.Engine

	Metrics *metrics.Collector

	// DryRun plans the build without writing anything
	DryRun bool
}

// Result describes a finished build
type Result struct {
	// OutputDir is absolute
	OutputDir string
	Outputs   []*plugins.Output
	Manifest  *Manifest
	Warnings  []string

	// Plugins lists the applied plugins in registration order
	Plugins []string
	Target  string

	Transformed int
	Copied      int
	Bytes       int64
	CacheHits   int64
	CacheMisses int64
	Duration    time.Duration
	DryRun      bool
}

// OutputDir resolves the configured output directory against the root
func OutputDir(cfg *types.Pipeline) string {
	if filepath.IsAbs(cfg.OutputDir) {
		return filepath.Clean(cfg.OutputDir)
	}
	return filepath.Join(cfg.Root, filepath.FromSlash(cfg.OutputDir))
}

// NewEngine creates a transform engine for cfg with the built-in tools. Pass
// it to successive builds so they share one cache.
func NewEngine(cfg *types.Pipeline) (*transform.Engine, error) {
	env, err := target.Resolve(cfg.Target)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigInvalid, "invalid target")
	}
	return transform.NewEngine(transform.EngineOptions{
		Env:       env,
		Minify:    cfg.Minify(),
		CacheSize: cfg.CacheSize,
	})
}

// Build runs the pipeline once. cfg is not modified.
func Build(ctx context.Context, cfg *types.Pipeline, opts Options) (*Result, error) {
	logger := logging.GetLogger("pipeline")
	done := logging.LogOperationStart(logger, "build")
	defer done()

	start := time.Now()
	res, err := build(ctx, clone(cfg), opts, logger)
	elapsed := time.Since(start)
	if err != nil {
		opts.Metrics.ObserveBuild(metrics.ResultFailure, string(errors.CategoryOf(err)), elapsed)
		logger.Error().Err(err).Str("category", string(errors.CategoryOf(err))).Msg("Build failed")
		return nil, err
	}
	res.Duration = elapsed
	opts.Metrics.ObserveBuild(metrics.ResultSuccess, "", elapsed)
	logger.Info().
		Int("outputs", len(res.Outputs)).
		Int("transformed", res.Transformed).
		Int("copied", res.Copied).
		Dur("duration", elapsed).
		Msg("Build finished")
	return res, nil
}

func build(ctx context.Context, cfg *types.Pipeline, opts Options, logger zerolog.Logger) (*Result, error) {
	fs := opts.FS
	if fs == nil {
		fs = filesystem.NewOS()
	}
	tools := opts.Tools
	if opts.Engine != nil {
		tools = opts.Engine.Tools()
	}
	if tools == nil {
		tools = transform.NewRegistry()
	}
	pluginReg := opts.Plugins
	if pluginReg == nil {
		pluginReg = plugins.NewRegistry()
	}

	if err := config.Validate(cfg, config.ValidateOptions{Tools: tools.Names(), Plugins: pluginReg.Names()}); err != nil {
		return nil, err
	}
	env, err := target.Resolve(cfg.Target)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigInvalid, "invalid target")
	}

	engine := opts.Engine
	if engine == nil {
		engine, err = transform.NewEngine(transform.EngineOptions{
			Tools:     tools,
			Env:       env,
			Minify:    cfg.Minify(),
			CacheSize: cfg.CacheSize,
		})
		if err != nil {
			return nil, err
		}
	}

	matcher, err := rules.Compile(cfg.Rules, cfg.SourceDir)
	if err != nil {
		return nil, err
	}
	scanner, err := rules.NewScanner(fs, cfg, matcher)
	if err != nil {
		return nil, err
	}
	inputs, err := scanner.Scan()
	if err != nil {
		return nil, err
	}
	aliasTargets, err := addAliasTargets(fs, cfg, inputs)
	if err != nil {
		return nil, err
	}

	comp := plugins.NewCompilation(cfg, fs, inputs)
	applied, err := plugins.Apply(comp, cfg.Plugins, pluginReg)
	if err != nil {
		return nil, err
	}
	if err := checkLoaders(comp, inputs); err != nil {
		return nil, err
	}

	hits, misses := engine.CacheStats()
	b := &builder{
		cfg:          cfg,
		fs:           fs,
		engine:       engine,
		matcher:      matcher,
		comp:         comp,
		aliasTargets: aliasTargets,
		limit:        parallelism(cfg),
		metrics:      opts.Metrics,
		logger:       logger,
	}

	modules, err := b.load(ctx, inputs.Files)
	if err != nil {
		return nil, err
	}
	resolution := matcher.Resolve(modulePaths(modules))
	warnings, err := matcher.CheckEmpty(resolution)
	if err != nil {
		return nil, err
	}
	transformed, err := b.transform(ctx, modules, resolution)
	if err != nil {
		return nil, err
	}
	if err := comp.RunEmitHooks(ctx); err != nil {
		return nil, err
	}

	outputs := comp.Outputs()
	manifest, err := buildManifest(fs, cfg.PublicPath, outputs)
	if err != nil {
		return nil, err
	}

	res := &Result{
		OutputDir:   OutputDir(cfg),
		Outputs:     outputs,
		Manifest:    manifest,
		Warnings:    append(warnings, comp.Warnings()...),
		Target:      env.Describe(),
		Transformed: transformed,
		Copied:      countOrigin(outputs, plugins.OriginCopy),
		Bytes:       manifest.TotalSize(),
		DryRun:      opts.DryRun,
	}
	for _, p := range applied {
		res.Plugins = append(res.Plugins, p.Name())
	}
	endHits, endMisses := engine.CacheStats()
	res.CacheHits, res.CacheMisses = endHits-hits, endMisses-misses

	if opts.DryRun {
		logger.Debug().Int("outputs", len(outputs)).Msg("Dry run, nothing written")
		return res, nil
	}
	if err := writeBundle(ctx, fs, cfg.Executor, res.OutputDir, outputs, manifest, logger); err != nil {
		return nil, err
	}

	opts.Metrics.AssetsCopied(res.Copied)
	opts.Metrics.BytesEmitted(res.Bytes)
	opts.Metrics.CacheHits(res.CacheHits)
	return res, nil
}

// checkLoaders fails when inputs need a loader no registered plugin provides
func checkLoaders(comp *plugins.Compilation, inputs *rules.ScanResult) error {
	exts := make([]string, 0, len(plugins.RequiredLoaders))
	for ext := range plugins.RequiredLoaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		n := inputs.Count(ext)
		if n == 0 {
			continue
		}
		if _, ok := comp.LoaderFor("file" + ext); !ok {
			return errors.Newf(errors.ErrPluginMissing,
				"%d %s files found but the %s plugin is not registered", n, ext, plugins.RequiredLoaders[ext]).
				WithDetail("plugin", plugins.RequiredLoaders[ext])
		}
	}
	return nil
}

func parallelism(cfg *types.Pipeline) int {
	if cfg.Parallelism > 0 {
		return cfg.Parallelism
	}
	return runtime.NumCPU()
}

func countOrigin(outputs []*plugins.Output, origin string) int {
	n := 0
	for _, out := range outputs {
		if out.Origin == origin {
			n++
		}
	}
	return n
}

// clone copies the parts of cfg that validation normalises in place
func clone(cfg *types.Pipeline) *types.Pipeline {
	c := *cfg
	c.Rules = append([]types.TransformRule(nil), cfg.Rules...)
	c.Plugins = append([]types.PluginSpec(nil), cfg.Plugins...)
	return &c
}
