package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/logging"
	"github.com/arthur-debert/sfcbuild/pkg/target"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides
const EnvPrefix = "SFCBUILD_"

// ProjectFiles are searched, in order, in the project root
var ProjectFiles = []string{"sfcbuild.toml", ".sfcbuild.toml", "sfcbuild.yaml", "sfcbuild.yml"}

// DotenvFiles are read, in order, from the project root
var DotenvFiles = []string{".env", ".env.local"}

// LoadOptions controls where configuration is read from
type LoadOptions struct {
	// Root is the project root; defaults to the working directory
	Root string

	// ConfigFile overrides the project file search
	ConfigFile string

	// Overrides come from command line flags, keyed like the config file
	Overrides map[string]interface{}
}

// Load reads and validates the pipeline configuration
func Load(opts LoadOptions) (*types.Pipeline, error) {
	logger := logging.GetLogger("config")

	root := opts.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to resolve project root %s", opts.Root)
	}

	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to load defaults")
	}

	// 2. Project file
	configPath, err := findProjectFile(root, opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), parserFor(configPath)); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to load config from %s", configPath).
				WithPath(configPath)
		}
		logger.Debug().Str("path", configPath).Msg("Loaded project config")
	}

	// 3. .env files
	dotenv, err := readDotenv(root)
	if err != nil {
		return nil, err
	}
	if err := k.Load(confmap.Provider(envToConfig(dotenv), "."), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load .env values")
	}

	// 4. Process environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load env vars")
	}

	// 5. Flags
	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load overrides")
		}
	}

	cfg, err := decode(k)
	if err != nil {
		return nil, err
	}
	cfg.Root = root
	cfg.Env = dotenv

	if err := Validate(cfg, ValidateOptions{}); err != nil {
		return nil, err
	}

	logger.Debug().
		Str("root", cfg.Root).
		Str("output", cfg.OutputDir).
		Int("rules", len(cfg.Rules)).
		Int("plugins", len(cfg.Plugins)).
		Msg("Configuration resolved")

	return cfg, nil
}

// Defaults returns the embedded defaults without any project layer
func Defaults() (*types.Pipeline, error) {
	k := koanf.New(".")
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to load defaults")
	}
	return decode(k)
}

func decode(k *koanf.Koanf) (*types.Pipeline, error) {
	var cfg types.Pipeline
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				target.DecodeHook(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}
	return &cfg, nil
}

func findProjectFile(root, explicit string) (string, error) {
	if explicit != "" {
		path := explicit
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		if _, err := os.Stat(path); err != nil {
			return "", errors.Wrapf(err, errors.ErrConfigLoad, "config file %s not readable", explicit).
				WithPath(path)
		}
		return path, nil
	}

	for _, name := range ProjectFiles {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return toml.Parser()
	}
}

func readDotenv(root string) (map[string]string, error) {
	values := make(map[string]string)
	for _, name := range DotenvFiles {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		read, err := godotenv.Read(path)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to read %s", name).WithPath(path)
		}
		for key, value := range read {
			values[key] = value
		}
	}
	return values, nil
}

// envKey maps SFCBUILD_TARGET__ES to target.es
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

func envToConfig(values map[string]string) map[string]interface{} {
	out := make(map[string]interface{})
	for key, value := range values {
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		out[envKey(key)] = value
	}
	return out
}
