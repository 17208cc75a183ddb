package plugins

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// PublicEnvPrefixes select the .env values exposed to client code
var PublicEnvPrefixes = []string{"VUE_APP_", "SFCBUILD_PUBLIC_"}

var envReference = regexp.MustCompile(`\b(?:process\.env|import\.meta\.env)\.([A-Za-z_][A-Za-z0-9_]*)\b`)

// Define substitutes process.env.NAME references in emitted scripts with
// string literals
type Define struct {
	// Values are extra definitions from the plugin options
	Values map[string]string `mapstructure:"values"`
}

// NewDefine creates the define plugin from its options
func NewDefine(options map[string]interface{}) (Plugin, error) {
	p := &Define{}
	if err := decodeOptions(options, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Define) Name() string { return PluginDefine }

func (p *Define) Apply(c *Compilation) error {
	values := DefineValues(c, p.Values)
	c.logger.Debug().Strs("keys", sortedKeys(values)).Msg("Define values resolved")

	c.OnEmit(func(ctx context.Context, c *Compilation) error {
		for _, out := range c.Outputs() {
			if out.Kind != KindScript || out.Content == nil {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			replaced, changed := substituteEnv(out.Content, values)
			if changed {
				if err := c.Replace(out.Path, replaced); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return nil
}

// DefineValues merges, lowest precedence first: public .env values, the
// define table, plugin options, then NODE_ENV and BASE_URL
func DefineValues(c *Compilation, extra map[string]string) map[string]string {
	values := make(map[string]string)
	for key, value := range c.Config.Env {
		for _, prefix := range PublicEnvPrefixes {
			if strings.HasPrefix(key, prefix) {
				values[key] = value
			}
		}
	}
	for key, value := range c.Config.Define {
		values[key] = value
	}
	for key, value := range extra {
		values[key] = value
	}
	values["NODE_ENV"] = c.Config.Mode
	values["BASE_URL"] = c.Config.PublicPath
	return values
}

func substituteEnv(content []byte, values map[string]string) ([]byte, bool) {
	changed := false
	out := envReference.ReplaceAllFunc(content, func(match []byte) []byte {
		name := string(envReference.FindSubmatch(match)[1])
		value, ok := values[name]
		if !ok {
			return match
		}
		changed = true
		literal, _ := json.Marshal(value)
		return literal
	})
	return out, changed
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
