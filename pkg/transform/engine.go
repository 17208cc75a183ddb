package transform

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/internal/hashutil"
	"github.com/arthur-debert/sfcbuild/pkg/logging"
	"github.com/arthur-debert/sfcbuild/pkg/registry"
	"github.com/arthur-debert/sfcbuild/pkg/rules"
	"github.com/arthur-debert/sfcbuild/pkg/target"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// DefaultCacheSize is used when the configuration leaves cache_size at zero
const DefaultCacheSize = 4096

// Engine runs rule chains against file content and memoises the results.
// One Engine lives across watch-mode rebuilds so unchanged files are not
// transformed twice.
type Engine struct {
	tools  registry.Registry[Tool]
	env    target.Environment
	minify bool
	cache  *lru.Cache[string, []byte]
	logger zerolog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// EngineOptions configures an Engine
type EngineOptions struct {
	Tools     registry.Registry[Tool]
	Env       target.Environment
	Minify    bool
	CacheSize int
}

// NewEngine creates an engine; a nil tool registry means the built-ins
func NewEngine(opts EngineOptions) (*Engine, error) {
	tools := opts.Tools
	if tools == nil {
		tools = NewRegistry()
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to create transform cache")
	}
	return &Engine{
		tools:  tools,
		env:    opts.Env,
		minify: opts.Minify,
		cache:  cache,
		logger: logging.GetLogger("transform"),
	}, nil
}

// Tools returns the registry the engine resolves tool names against
func (e *Engine) Tools() registry.Registry[Tool] {
	return e.tools
}

// Apply runs every rule of the chain over content, in order. The output of
// one rule is the input of the next.
func (e *Engine) Apply(ctx context.Context, rel string, content []byte, chain []*rules.Rule) ([]byte, error) {
	for _, rule := range chain {
		out, err := e.Run(ctx, rule.Tool, rel, content, rule.Options)
		if err != nil {
			if errors.IsErrorCode(err, errors.ErrTransform) {
				return nil, errors.Wrapf(err, errors.ErrTransform, "rule %s failed on %s", rule.Name, rel).
					WithPath(rel).
					WithDetail("rule", rule.Name)
			}
			return nil, err
		}
		content = out
	}
	return content, nil
}

// Run applies a single tool, going through the cache
func (e *Engine) Run(ctx context.Context, toolName, rel string, content []byte, options map[string]interface{}) ([]byte, error) {
	tool, err := e.tools.Get(toolName)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrToolUnknown, "unknown tool %q", toolName).WithPath(rel)
	}

	key, err := e.cacheKey(toolName, rel, content, options)
	if err != nil {
		return nil, err
	}
	if out, ok := e.cache.Get(key); ok {
		e.hits.Add(1)
		e.logger.Trace().Str("path", rel).Str("tool", toolName).Msg("Transform cache hit")
		return out, nil
	}
	e.misses.Add(1)

	out, err := tool.Transform(ctx, Input{
		Path:    rel,
		Content: content,
		Options: options,
		Env:     e.env,
		Minify:  e.minify,
	})
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, out)
	e.logger.Debug().Str("path", rel).Str("tool", toolName).Int("bytes", len(out)).Msg("Transformed")
	return out, nil
}

// CacheStats returns the cache hit and miss counters
func (e *Engine) CacheStats() (hits, misses int64) {
	return e.hits.Load(), e.misses.Load()
}

// cacheKey covers everything that influences a tool's output. The path is
// part of the key because it ends up in error messages and source maps.
func (e *Engine) cacheKey(tool, rel string, content []byte, options map[string]interface{}) (string, error) {
	opts, err := json.Marshal(options)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrConfigInvalid, "options of tool %s are not serialisable", tool)
	}
	env, err := json.Marshal(e.env)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrInternal, "failed to serialise target")
	}
	minify := []byte("0")
	if e.minify {
		minify = []byte("1")
	}
	return hashutil.Key([]byte(tool), []byte(rel), content, opts, env, minify), nil
}
