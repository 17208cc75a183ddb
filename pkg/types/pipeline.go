package types

// Pipeline is the root configuration record of a build. It is read once at
// build start and never mutated by the pipeline.
type Pipeline struct {
	// Root is the project root; every other path is relative to it
	Root string `koanf:"root" toml:"root,omitempty" yaml:"root,omitempty"`

	// SourceDir holds the UI component sources
	SourceDir string `koanf:"source_dir" toml:"source_dir" yaml:"source_dir"`

	// DependencyDir is the conventional third-party packages location
	DependencyDir string `koanf:"dependency_dir" toml:"dependency_dir" yaml:"dependency_dir"`

	// PublicDir is copied verbatim and may hold an index.html template
	PublicDir string `koanf:"public_dir" toml:"public_dir" yaml:"public_dir"`

	// OutputDir receives the emitted bundle
	OutputDir string `koanf:"output_dir" toml:"output_dir" yaml:"output_dir"`

	// PublicPath prefixes every reference inside the bundle. Must be relative.
	PublicPath string `koanf:"public_path" toml:"public_path" yaml:"public_path"`

	// Entry is the entry module, relative to SourceDir
	Entry string `koanf:"entry" toml:"entry" yaml:"entry"`

	// Title is used by the default index.html template
	Title string `koanf:"title" toml:"title,omitempty" yaml:"title,omitempty"`

	// Mode is "production" or "development"; production minifies
	Mode string `koanf:"mode" toml:"mode" yaml:"mode"`

	Target TargetDescriptor `koanf:"target" toml:"target" yaml:"target"`

	Rules   []TransformRule `koanf:"rules" toml:"rules,omitempty" yaml:"rules,omitempty"`
	Plugins []PluginSpec    `koanf:"plugins" toml:"plugins" yaml:"plugins"`

	// Aliases maps bare import specifiers to project-relative files; they
	// end up in the import map of index.html
	Aliases map[string]string `koanf:"aliases" toml:"aliases,omitempty" yaml:"aliases,omitempty"`

	// Define holds extra process.env values substituted into scripts
	Define map[string]string `koanf:"define" toml:"define,omitempty" yaml:"define,omitempty"`

	// Parallelism bounds concurrent transforms; 0 means one per CPU
	Parallelism int `koanf:"parallelism" toml:"parallelism,omitempty" yaml:"parallelism,omitempty"`

	// CacheSize is the number of memoised transform results
	CacheSize int `koanf:"cache_size" toml:"cache_size,omitempty" yaml:"cache_size,omitempty"`

	// Executor selects how outputs are written: "synthfs" or "direct"
	Executor string `koanf:"executor" toml:"executor" yaml:"executor"`

	// Publish configures the object storage upload
	Publish PublishConfig `koanf:"publish" toml:"publish,omitempty" yaml:"publish,omitempty"`

	// Env carries values read from .env files; never serialised
	Env map[string]string `koanf:"-" toml:"-" yaml:"-"`
}

// Minify reports whether emitted scripts and styles are minified
func (p *Pipeline) Minify() bool {
	return p.Mode == ModeProduction
}

// HasPlugin reports whether a plugin is in the registration list
func (p *Pipeline) HasPlugin(name string) bool {
	for _, spec := range p.Plugins {
		if spec.Name == name {
			return true
		}
	}
	return false
}

// Build modes
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
)

// Executor kinds
const (
	ExecutorSynthfs = "synthfs"
	ExecutorDirect  = "direct"
)

// PublishConfig describes an S3-compatible destination
type PublishConfig struct {
	Endpoint  string `koanf:"endpoint" toml:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Region    string `koanf:"region" toml:"region,omitempty" yaml:"region,omitempty"`
	Bucket    string `koanf:"bucket" toml:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix    string `koanf:"prefix" toml:"prefix,omitempty" yaml:"prefix,omitempty"`
	AccessKey string `koanf:"access_key" toml:"-" yaml:"-"`
	SecretKey string `koanf:"secret_key" toml:"-" yaml:"-"`
	UseSSL    bool   `koanf:"use_ssl" toml:"use_ssl,omitempty" yaml:"use_ssl,omitempty"`
}
