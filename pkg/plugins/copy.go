package plugins

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/filesystem"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// Copy mirrors directory trees into the output, verbatim, once per build
type Copy struct {
	Patterns []types.CopyRule `mapstructure:"patterns"`
}

// NewCopy creates the asset copy plugin from its options
func NewCopy(options map[string]interface{}) (Plugin, error) {
	p := &Copy{}
	if err := decodeOptions(options, p); err != nil {
		return nil, err
	}
	for i := range p.Patterns {
		if err := validateCopyRule(&p.Patterns[i]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Copy) Name() string { return PluginCopy }

func (p *Copy) Apply(c *Compilation) error {
	c.OnEmit(func(ctx context.Context, c *Compilation) error {
		for _, rule := range p.Patterns {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := mirror(c, rule); err != nil {
				return err
			}
		}
		return nil
	})
	return nil
}

func validateCopyRule(rule *types.CopyRule) error {
	from := strings.TrimSpace(rule.From)
	to := strings.TrimSpace(rule.To)
	if from == "" || to == "" {
		return errors.Newf(errors.ErrConfigInvalid, "copy pattern needs both from and to, got from=%q to=%q", rule.From, rule.To)
	}
	cleanFrom := path.Clean(filepath.ToSlash(from))
	if path.IsAbs(cleanFrom) || cleanFrom == ".." || strings.HasPrefix(cleanFrom, "../") {
		return errors.Newf(errors.ErrConfigInvalid, "copy source %q must be inside the project", rule.From)
	}
	if _, err := cleanOutputPath(to); err != nil && path.Clean(to) != "." {
		return errors.Newf(errors.ErrConfigInvalid, "copy target %q must be inside the output directory", rule.To)
	}
	if rule.Glob != "" && !doublestar.ValidatePattern(rule.Glob) {
		return errors.Newf(errors.ErrPatternInvalid, "copy glob %q is malformed", rule.Glob)
	}
	for _, ignore := range rule.Ignore {
		if !doublestar.ValidatePattern(ignore) {
			return errors.Newf(errors.ErrPatternInvalid, "copy ignore pattern %q is malformed", ignore)
		}
	}
	rule.From = cleanFrom
	rule.To = path.Clean(filepath.ToSlash(to))
	return nil
}

// Mirror is one file a copy pattern mirrors
type Mirror struct {
	// Source is absolute
	Source string

	// Target is relative to the output directory
	Target string

	// From is relative to the project root
	From string
}

// CopyPatterns returns the validated copy patterns of a pipeline, or nil
// when the copy plugin is not registered
func CopyPatterns(cfg *types.Pipeline) ([]types.CopyRule, error) {
	for _, spec := range cfg.Plugins {
		if spec.Name != PluginCopy {
			continue
		}
		p, err := NewCopy(spec.Options)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigInvalid, "invalid options for plugin copy")
		}
		return p.(*Copy).Patterns, nil
	}
	return nil, nil
}

// Plan lists the files a validated rule mirrors. A missing source is a
// resource error: the build must not produce a bundle without its assets.
func Plan(fsys afero.Fs, root string, rule types.CopyRule) ([]Mirror, error) {
	src := filepath.Join(root, filepath.FromSlash(rule.From))
	exists, isDir, err := filesystem.Stat(fsys, src)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to stat copy source %s", rule.From).WithPath(src)
	}
	if !exists {
		return nil, errors.Newf(errors.ErrAssetSourceMissing, "copy source %s does not exist", rule.From).
			WithPath(src).
			WithDetail("to", rule.To)
	}

	if !isDir {
		target := rule.To
		if path.Ext(rule.To) == "" {
			target = path.Join(rule.To, path.Base(rule.From))
		}
		return []Mirror{{Source: src, Target: target, From: rule.From}}, nil
	}

	files, err := filesystem.WalkFiles(fsys, src, nil)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to walk copy source %s", rule.From).WithPath(src)
	}
	var mirrors []Mirror
	for _, f := range files {
		if !copyIncluded(rule, f.Rel) {
			continue
		}
		mirrors = append(mirrors, Mirror{
			Source: f.Path,
			Target: path.Join(rule.To, f.Rel),
			From:   path.Join(rule.From, f.Rel),
		})
	}
	return mirrors, nil
}

func mirror(c *Compilation, rule types.CopyRule) error {
	mirrors, err := Plan(c.FS, c.Config.Root, rule)
	if err != nil {
		return err
	}
	for _, m := range mirrors {
		if err := c.Emit(&Output{
			Path:   m.Target,
			Kind:   KindAsset,
			Source: m.Source,
			From:   m.From,
			Origin: OriginCopy,
		}); err != nil {
			return err
		}
	}
	if len(mirrors) == 0 {
		c.Warn("copy pattern " + rule.From + " matched no files")
	}
	c.logger.Debug().Str("from", rule.From).Str("to", rule.To).Int("files", len(mirrors)).Msg("Mirrored asset directory")
	return nil
}

func copyIncluded(rule types.CopyRule, rel string) bool {
	if rule.Glob != "" {
		if ok, _ := doublestar.Match(rule.Glob, rel); !ok {
			return false
		}
	}
	for _, ignore := range rule.Ignore {
		if ok, _ := doublestar.Match(ignore, rel); ok {
			return false
		}
	}
	return true
}
