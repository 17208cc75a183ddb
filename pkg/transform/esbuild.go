package transform

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/target"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/go-viper/mapstructure/v2"
)

var loaders = map[string]api.Loader{
	"js":  api.LoaderJS,
	"mjs": api.LoaderJS,
	"cjs": api.LoaderJS,
	"jsx": api.LoaderJSX,
	"ts":  api.LoaderTS,
	"mts": api.LoaderTS,
	"cts": api.LoaderTS,
	"tsx": api.LoaderTSX,
	"css": api.LoaderCSS,
}

// esbuildOptions are the per-rule options understood by the esbuild tool
type esbuildOptions struct {
	// Targets overrides the pipeline target for the rule's files
	Targets *types.TargetDescriptor `mapstructure:"targets"`

	// Loader forces a loader instead of picking one from the extension
	Loader string `mapstructure:"loader"`

	// Minify overrides the mode-derived minification
	Minify *bool `mapstructure:"minify"`

	// Sourcemap appends an inline source map
	Sourcemap bool `mapstructure:"sourcemap"`

	// KeepNames preserves function and class names under minification
	KeepNames bool `mapstructure:"keep_names"`
}

// Esbuild lowers script and style syntax to the target environment
type Esbuild struct{}

// NewEsbuild creates the esbuild tool
func NewEsbuild() *Esbuild {
	return &Esbuild{}
}

func (e *Esbuild) Name() string { return ToolEsbuild }

func (e *Esbuild) Transform(ctx context.Context, in Input) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts, err := decodeEsbuildOptions(in.Options)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigInvalid, "invalid esbuild options").WithPath(in.Path)
	}

	env := in.Env
	if opts.Targets != nil {
		env, err = target.Resolve(*opts.Targets)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigInvalid, "invalid esbuild targets").WithPath(in.Path)
		}
	}

	loader, err := loaderFor(in.Path, opts.Loader)
	if err != nil {
		return nil, err
	}

	minify := in.Minify
	if opts.Minify != nil {
		minify = *opts.Minify
	}

	buildOpts := api.TransformOptions{
		Loader:            loader,
		Target:            env.Target,
		Engines:           env.Engines,
		Platform:          env.Platform,
		Sourcefile:        in.Path,
		MinifyWhitespace:  minify,
		MinifyIdentifiers: minify,
		MinifySyntax:      minify,
		KeepNames:         opts.KeepNames,
		LogLevel:          api.LogLevelSilent,
	}
	if opts.Sourcemap {
		buildOpts.Sourcemap = api.SourceMapInline
	}

	result := api.Transform(string(in.Content), buildOpts)
	if len(result.Errors) > 0 {
		return nil, messageError(in.Path, result.Errors)
	}
	return result.Code, nil
}

// Supports reports whether the tool has a loader for the file
func (e *Esbuild) Supports(rel string) bool {
	_, err := loaderFor(rel, "")
	return err == nil
}

func decodeEsbuildOptions(raw map[string]interface{}) (esbuildOptions, error) {
	var opts esbuildOptions
	if len(raw) == 0 {
		return opts, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       target.DecodeHook(),
	})
	if err != nil {
		return opts, err
	}
	return opts, decoder.Decode(raw)
}

func loaderFor(rel, forced string) (api.Loader, error) {
	name := forced
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(path.Ext(rel)), ".")
	}
	loader, ok := loaders[name]
	if !ok {
		return api.LoaderNone, errors.Newf(errors.ErrTransform, "esbuild cannot transform %q files", name).
			WithPath(rel)
	}
	return loader, nil
}

// messageError turns the first esbuild error into a transform error that
// carries the file, line and column
func messageError(rel string, messages []api.Message) error {
	msg := messages[0]
	err := errors.New(errors.ErrTransform, msg.Text).WithPath(rel)
	if loc := msg.Location; loc != nil {
		// esbuild columns are zero-based
		err.Message = fmt.Sprintf("%s:%d:%d: %s", rel, loc.Line, loc.Column+1, msg.Text)
		err.WithDetail("line", loc.Line).WithDetail("column", loc.Column+1)
		if loc.LineText != "" {
			err.WithDetail("source", loc.LineText)
		}
	}
	if len(messages) > 1 {
		err.WithDetail("more", len(messages)-1)
	}
	return err
}
