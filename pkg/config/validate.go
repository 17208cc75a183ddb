package config

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/target"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/bmatcuk/doublestar/v4"
)

// ValidateOptions lists the registered names to check against. Empty lists
// skip the corresponding check.
type ValidateOptions struct {
	Tools   []string
	Plugins []string
}

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// Validate checks a configuration and normalises it in place. Every error
// it returns is a configuration error: nothing has been written yet.
func Validate(cfg *types.Pipeline, opts ValidateOptions) error {
	publicPath, err := NormalizePublicPath(cfg.PublicPath)
	if err != nil {
		return err
	}
	cfg.PublicPath = publicPath

	for name, value := range map[string]string{
		"source_dir":     cfg.SourceDir,
		"dependency_dir": cfg.DependencyDir,
		"output_dir":     cfg.OutputDir,
	} {
		if strings.TrimSpace(value) == "" {
			return errors.Newf(errors.ErrConfigInvalid, "%s must not be empty", name)
		}
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = types.ModeProduction
	case types.ModeProduction, types.ModeDevelopment:
	default:
		return errors.Newf(errors.ErrConfigInvalid, "unknown mode %q", cfg.Mode)
	}

	switch cfg.Executor {
	case "":
		cfg.Executor = types.ExecutorSynthfs
	case types.ExecutorSynthfs, types.ExecutorDirect:
	default:
		return errors.Newf(errors.ErrConfigInvalid, "unknown executor %q", cfg.Executor)
	}

	if cfg.Parallelism < 0 {
		return errors.Newf(errors.ErrConfigInvalid, "parallelism must not be negative, got %d", cfg.Parallelism)
	}

	if _, err := target.Resolve(cfg.Target); err != nil {
		return errors.Wrap(err, errors.ErrConfigInvalid, "invalid target")
	}

	ruleNames := make(map[string]int, len(cfg.Rules))
	for i := range cfg.Rules {
		if err := validateRule(&cfg.Rules[i], i, opts.Tools); err != nil {
			return err
		}
		name := cfg.Rules[i].Name
		if prev, ok := ruleNames[name]; ok {
			return errors.Newf(errors.ErrConfigInvalid, "rules %d and %d are both named %q", prev, i, name)
		}
		ruleNames[name] = i
	}

	if err := validateOutputDir(cfg); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for i, plugin := range cfg.Plugins {
		if plugin.Name == "" {
			return errors.Newf(errors.ErrConfigInvalid, "plugin %d has no name", i)
		}
		if seen[plugin.Name] {
			return errors.Newf(errors.ErrConfigInvalid, "plugin %q is registered twice", plugin.Name)
		}
		seen[plugin.Name] = true
		if len(opts.Plugins) > 0 && !slices.Contains(opts.Plugins, plugin.Name) {
			return errors.Newf(errors.ErrPluginUnknown, "unknown plugin %q", plugin.Name).
				WithDetail("known", opts.Plugins)
		}
	}

	for alias, file := range cfg.Aliases {
		if path.IsAbs(filepath.ToSlash(file)) || strings.HasPrefix(path.Clean(filepath.ToSlash(file)), "..") {
			return errors.Newf(errors.ErrConfigInvalid, "alias %q must point inside the project, got %q", alias, file)
		}
	}

	return nil
}

// validateOutputDir rejects an output directory that is, or contains, the
// project root or any directory the build reads from. A build replaces the
// output directory wholesale.
func validateOutputDir(cfg *types.Pipeline) error {
	root := cfg.Root
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	out := resolveDir(root, cfg.OutputDir)

	inputs := []struct{ name, dir string }{
		{"project root", "."},
		{"source_dir", cfg.SourceDir},
		{"dependency_dir", cfg.DependencyDir},
		{"public_dir", cfg.PublicDir},
	}
	for _, rule := range cfg.Rules {
		for _, inc := range rule.Include {
			base := filepath.ToSlash(inc)
			if strings.ContainsAny(base, "*?[{") {
				base, _ = doublestar.SplitPattern(base)
			}
			inputs = append(inputs, struct{ name, dir string }{"include scope of rule " + rule.Name, base})
		}
	}
	for _, input := range inputs {
		if strings.TrimSpace(input.dir) == "" {
			continue
		}
		if within(out, resolveDir(root, input.dir)) {
			return errors.Newf(errors.ErrConfigInvalid,
				"output_dir %q must not be or contain the %s %q", cfg.OutputDir, input.name, input.dir).
				WithDetail("output_dir", out)
		}
	}
	return nil
}

func resolveDir(root, dir string) string {
	dir = filepath.FromSlash(dir)
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(root, dir)
}

// within reports whether child is parent or lies below it
func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func validateRule(rule *types.TransformRule, index int, tools []string) error {
	if rule.Name == "" {
		rule.Name = fmt.Sprintf("rule-%d", index)
	}
	if rule.Test == "" {
		return errors.Newf(errors.ErrConfigInvalid, "rule %q has an empty test pattern", rule.Name)
	}
	if _, err := regexp.Compile(rule.Test); err != nil {
		return errors.Wrapf(err, errors.ErrPatternInvalid, "rule %q has a malformed test pattern", rule.Name).
			WithDetail("pattern", rule.Test)
	}
	if rule.Tool == "" {
		return errors.Newf(errors.ErrConfigInvalid, "rule %q has no tool", rule.Name)
	}
	if len(tools) > 0 && !slices.Contains(tools, rule.Tool) {
		return errors.Newf(errors.ErrToolUnknown, "rule %q uses unknown tool %q", rule.Name, rule.Tool).
			WithDetail("known", tools)
	}
	if !rule.OnEmpty.Valid() {
		return errors.Newf(errors.ErrConfigInvalid, "rule %q has unknown on_empty %q", rule.Name, rule.OnEmpty)
	}
	if rule.OnEmpty == "" {
		rule.OnEmpty = types.EmptyMatchWarn
	}
	return nil
}

// NormalizePublicPath rejects absolute and scheme-qualified public paths and
// makes sure the result ends with a slash. The empty string becomes "./".
func NormalizePublicPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "./", nil
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) || schemePattern.MatchString(p) {
		return "", errors.Newf(errors.ErrConfigInvalid,
			"public_path %q must be relative so the bundle can be served from any root", p)
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p, nil
}

// IsRelativeReference reports whether a reference found in emitted output is
// relative: it must not start with "/" nor carry a scheme
func IsRelativeReference(ref string) bool {
	return !strings.HasPrefix(ref, "/") && !schemePattern.MatchString(ref)
}
