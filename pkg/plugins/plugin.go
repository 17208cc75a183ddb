package plugins

import (
	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/registry"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/go-viper/mapstructure/v2"
)

// Plugin hooks into a compilation
type Plugin interface {
	Name() string
	Apply(c *Compilation) error
}

// Factory builds a plugin from its registration options
type Factory func(options map[string]interface{}) (Plugin, error)

// Built-in plugin names
const (
	PluginVue    = "vue"
	PluginCopy   = "copy"
	PluginHTML   = "html"
	PluginDefine = "define"
)

// RequiredLoaders maps an input extension to the plugin that must be
// registered to load it
var RequiredLoaders = map[string]string{
	".vue": PluginVue,
}

// NewRegistry returns a registry holding the built-in plugin factories
func NewRegistry() registry.Registry[Factory] {
	reg := registry.New[Factory]()
	registry.MustRegister[Factory](reg, PluginVue, func(map[string]interface{}) (Plugin, error) {
		return NewVue(), nil
	})
	registry.MustRegister[Factory](reg, PluginCopy, NewCopy)
	registry.MustRegister[Factory](reg, PluginHTML, NewHTML)
	registry.MustRegister[Factory](reg, PluginDefine, NewDefine)
	return reg
}

// Apply instantiates every plugin of the registration list and applies it,
// in list order
func Apply(c *Compilation, specs []types.PluginSpec, reg registry.Registry[Factory]) ([]Plugin, error) {
	applied := make([]Plugin, 0, len(specs))
	for _, spec := range specs {
		factory, err := reg.Get(spec.Name)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrPluginUnknown, "unknown plugin %q", spec.Name).
				WithDetail("known", reg.Names())
		}
		plugin, err := factory(spec.Options)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigInvalid, "invalid options for plugin %s", spec.Name)
		}
		c.setApplying(spec.Name)
		if err := plugin.Apply(c); err != nil {
			c.setApplying("")
			return nil, err
		}
		applied = append(applied, plugin)
	}
	c.setApplying("")
	return applied, nil
}

// decodeOptions decodes plugin options into a struct, rejecting unknown keys
func decodeOptions(options map[string]interface{}, out interface{}) error {
	if len(options) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}
