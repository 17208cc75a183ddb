package types

// TransformRule rewrites files that match Test and reside under one of the
// Include scopes. Rules that match the same file chain in declaration order.
type TransformRule struct {
	Name string `koanf:"name" toml:"name" yaml:"name"`

	// Test is a regular expression over slash-separated project-relative paths
	Test string `koanf:"test" toml:"test" yaml:"test"`

	// Include scopes are directory prefixes or doublestar globs. Empty means
	// the source directory.
	Include []string `koanf:"include" toml:"include,omitempty" yaml:"include,omitempty"`
	Exclude []string `koanf:"exclude" toml:"exclude,omitempty" yaml:"exclude,omitempty"`

	// Tool names a registered transform tool
	Tool    string                 `koanf:"tool" toml:"tool" yaml:"tool"`
	Options map[string]interface{} `koanf:"options" toml:"options,omitempty" yaml:"options,omitempty"`

	// OnEmpty decides what happens when the rule matches no file
	OnEmpty EmptyMatchPolicy `koanf:"on_empty" toml:"on_empty,omitempty" yaml:"on_empty,omitempty"`
}

// EmptyMatchPolicy controls zero-match transform rules
type EmptyMatchPolicy string

const (
	EmptyMatchIgnore EmptyMatchPolicy = "ignore"
	EmptyMatchWarn   EmptyMatchPolicy = "warn"
	EmptyMatchError  EmptyMatchPolicy = "error"
)

// Valid reports whether the policy is known; empty means the default
func (p EmptyMatchPolicy) Valid() bool {
	switch p {
	case "", EmptyMatchIgnore, EmptyMatchWarn, EmptyMatchError:
		return true
	}
	return false
}

// CopyRule mirrors a directory tree into the output. It is non-incremental
// and runs once per build.
type CopyRule struct {
	// From is relative to the project root
	From string `koanf:"from" toml:"from" yaml:"from" mapstructure:"from"`

	// To is relative to the output directory
	To string `koanf:"to" toml:"to" yaml:"to" mapstructure:"to"`

	// Glob optionally restricts the mirrored files (doublestar syntax, relative to From)
	Glob string `koanf:"glob" toml:"glob,omitempty" yaml:"glob,omitempty" mapstructure:"glob"`

	// Ignore lists doublestar globs, relative to From, that are skipped
	Ignore []string `koanf:"ignore" toml:"ignore,omitempty" yaml:"ignore,omitempty" mapstructure:"ignore"`
}

// PluginSpec is one entry of the ordered plugin registration list
type PluginSpec struct {
	Name    string                 `koanf:"name" toml:"name" yaml:"name"`
	Options map[string]interface{} `koanf:"options" toml:"options,omitempty" yaml:"options,omitempty"`
}

// TargetDescriptor states the capabilities of the execution environment.
// It decides how aggressively source syntax is downgraded.
type TargetDescriptor struct {
	// Platform is "web" or "node"
	Platform string `koanf:"platform" toml:"platform" yaml:"platform" mapstructure:"platform"`

	// ESModules targets the browsers with native module support
	ESModules bool `koanf:"esmodules" toml:"esmodules,omitempty" yaml:"esmodules,omitempty" mapstructure:"esmodules"`

	// ES is a language level such as "es2017"
	ES string `koanf:"es" toml:"es,omitempty" yaml:"es,omitempty" mapstructure:"es"`

	// Browsers lists engines such as "chrome61" or "safari 10.1"
	Browsers []string `koanf:"browsers" toml:"browsers,omitempty" yaml:"browsers,omitempty" mapstructure:"browsers"`
}

// Platforms
const (
	PlatformWeb  = "web"
	PlatformNode = "node"
)
