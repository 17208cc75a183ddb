package rules

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/logging"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

// Rule is a compiled transform rule
type Rule struct {
	types.TransformRule

	test    *regexp.Regexp
	include []scope
	exclude []scope
}

type scope struct {
	raw  string
	glob bool
}

func newScope(raw string) scope {
	raw = strings.TrimSuffix(path.Clean(strings.TrimPrefix(toSlash(raw), "./")), "/")
	return scope{raw: raw, glob: strings.ContainsAny(raw, "*?[{")}
}

// contains reports whether a project-relative file lies under the scope
func (s scope) contains(rel string) bool {
	if s.raw == "." {
		return true
	}
	if !s.glob {
		return rel == s.raw || strings.HasPrefix(rel, s.raw+"/")
	}
	if ok, _ := doublestar.Match(s.raw, rel); ok {
		return true
	}
	ok, _ := doublestar.Match(s.raw+"/**", rel)
	return ok
}

// base is the directory the scanner has to walk for this scope
func (s scope) base() string {
	if !s.glob {
		return s.raw
	}
	base, _ := doublestar.SplitPattern(s.raw)
	return base
}

// Matcher holds the compiled rules of a pipeline
type Matcher struct {
	rules  []*Rule
	logger zerolog.Logger
}

// Compile compiles every rule. A malformed pattern or a rule name used twice
// is a configuration error. Unnamed rules are called rule-<index>.
func Compile(ruleList []types.TransformRule, sourceDir string) (*Matcher, error) {
	m := &Matcher{logger: logging.GetLogger("rules.matcher")}

	names := make(map[string]int, len(ruleList))
	for i, r := range ruleList {
		if r.Name == "" {
			r.Name = fmt.Sprintf("rule-%d", i)
		}
		if prev, ok := names[r.Name]; ok {
			return nil, errors.Newf(errors.ErrConfigInvalid, "rules %d and %d are both named %q", prev, i, r.Name)
		}
		names[r.Name] = i

		re, err := regexp.Compile(r.Test)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrPatternInvalid, "rule %d (%s) has a malformed test pattern", i, r.Name).
				WithDetail("pattern", r.Test)
		}
		rule := &Rule{TransformRule: r, test: re}
		if rule.OnEmpty == "" {
			rule.OnEmpty = types.EmptyMatchWarn
		}

		includes := r.Include
		if len(includes) == 0 {
			includes = []string{sourceDir}
		}
		for _, inc := range includes {
			s := newScope(inc)
			if s.glob && !doublestar.ValidatePattern(s.raw) {
				return nil, errors.Newf(errors.ErrPatternInvalid, "rule %s has a malformed include scope %q", r.Name, inc)
			}
			rule.include = append(rule.include, s)
		}
		for _, exc := range r.Exclude {
			s := newScope(exc)
			if s.glob && !doublestar.ValidatePattern(s.raw) {
				return nil, errors.Newf(errors.ErrPatternInvalid, "rule %s has a malformed exclude scope %q", r.Name, exc)
			}
			rule.exclude = append(rule.exclude, s)
		}
		m.rules = append(m.rules, rule)
	}

	return m, nil
}

// Rules returns the compiled rules in declaration order
func (m *Matcher) Rules() []*Rule {
	return m.rules
}

// Applies reports whether the rule transforms the project-relative file
func (r *Rule) Applies(rel string) bool {
	rel = toSlash(rel)
	if !r.test.MatchString(rel) {
		return false
	}
	in := false
	for _, s := range r.include {
		if s.contains(rel) {
			in = true
			break
		}
	}
	if !in {
		return false
	}
	for _, s := range r.exclude {
		if s.contains(rel) {
			return false
		}
	}
	return true
}

// Match returns every rule that applies to the file, in declaration order
func (m *Matcher) Match(rel string) []*Rule {
	var matched []*Rule
	for _, rule := range m.rules {
		if rule.Applies(rel) {
			matched = append(matched, rule)
		}
	}
	return matched
}

// Bases returns the deduplicated directories that include scopes point at
func (m *Matcher) Bases() []string {
	seen := make(map[string]bool)
	var bases []string
	for _, rule := range m.rules {
		for _, s := range rule.include {
			b := s.base()
			if !seen[b] {
				seen[b] = true
				bases = append(bases, b)
			}
		}
	}
	return bases
}

// Resolution is the outcome of matching a file set
type Resolution struct {
	// ByFile maps a project-relative path to its rule chain
	ByFile map[string][]*Rule

	// Counts holds the number of files each rule matched, by rule name
	Counts map[string]int
}

// Resolve matches a set of project-relative files against every rule
func (m *Matcher) Resolve(files []string) Resolution {
	res := Resolution{
		ByFile: make(map[string][]*Rule),
		Counts: make(map[string]int),
	}
	for _, rule := range m.rules {
		res.Counts[rule.Name] = 0
	}
	for _, f := range files {
		chain := m.Match(f)
		if len(chain) == 0 {
			continue
		}
		res.ByFile[f] = chain
		for _, rule := range chain {
			res.Counts[rule.Name]++
		}
	}
	return res
}

// CheckEmpty applies each rule's on_empty policy. It returns warnings for
// rules with policy "warn" and a configuration error for the first rule with
// policy "error".
func (m *Matcher) CheckEmpty(res Resolution) ([]string, error) {
	var warnings []string
	for _, rule := range m.rules {
		if res.Counts[rule.Name] > 0 {
			continue
		}
		switch rule.OnEmpty {
		case types.EmptyMatchIgnore:
			m.logger.Debug().Str("rule", rule.Name).Msg("Rule matched no files")
		case types.EmptyMatchError:
			return warnings, errors.Newf(errors.ErrEmptyMatch, "rule %q matched no files", rule.Name).
				WithDetail("test", rule.Test).
				WithDetail("include", rule.Include)
		default:
			m.logger.Warn().Str("rule", rule.Name).Str("test", rule.Test).Msg("Rule matched no files")
			warnings = append(warnings, "rule "+rule.Name+" matched no files")
		}
	}
	return warnings, nil
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
