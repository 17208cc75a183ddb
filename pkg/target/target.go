// Package target turns a target execution environment descriptor into the
// engine list used for syntax lowering.
//
// Precedence inside a descriptor: an explicit browser list wins over an ES
// level, which wins over the esmodules capability flag.
package target

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/go-viper/mapstructure/v2"
)

// Environment is a resolved descriptor
type Environment struct {
	Platform api.Platform
	Target   api.Target
	Engines  []api.Engine
}

// ESModuleBrowsers are the engines with native <script type="module">
// support. Safari and iOS start at 11: 10.x shipped modules with a broken
// let/const, which esbuild refuses to lower.
var ESModuleBrowsers = []string{"chrome61", "edge16", "firefox60", "ios11", "opera48", "safari11"}

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ios":     api.EngineIOS,
	"node":    api.EngineNode,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

var esLevels = map[string]api.Target{
	"es2015": api.ES2015,
	"es6":    api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

var browserPattern = regexp.MustCompile(`^([a-z]+)\s*([0-9]+(?:\.[0-9]+)*)$`)

// Resolve validates a descriptor and maps it to esbuild settings
func Resolve(desc types.TargetDescriptor) (Environment, error) {
	env := Environment{Platform: api.PlatformBrowser, Target: api.DefaultTarget}

	switch strings.ToLower(desc.Platform) {
	case "", types.PlatformWeb:
	case types.PlatformNode:
		env.Platform = api.PlatformNode
	default:
		return env, fmt.Errorf("unknown platform %q", desc.Platform)
	}

	switch {
	case len(desc.Browsers) > 0:
		engines, err := ParseBrowsers(desc.Browsers)
		if err != nil {
			return env, err
		}
		env.Engines = engines
	case desc.ES != "":
		level, ok := esLevels[strings.ToLower(desc.ES)]
		if !ok {
			return env, fmt.Errorf("unknown language level %q", desc.ES)
		}
		env.Target = level
	case desc.ESModules:
		engines, _ := ParseBrowsers(ESModuleBrowsers)
		env.Engines = engines
	case env.Platform == api.PlatformNode:
		env.Engines = []api.Engine{{Name: api.EngineNode, Version: "14"}}
	default:
		env.Target = api.ES2015
	}

	return env, nil
}

// ParseBrowsers accepts "chrome61", "chrome 61" and "safari10.1"
func ParseBrowsers(list []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(list))
	for _, entry := range list {
		m := browserPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(entry)))
		if m == nil {
			return nil, fmt.Errorf("malformed browser %q", entry)
		}
		name, ok := engineNames[m[1]]
		if !ok {
			return nil, fmt.Errorf("unknown browser %q", m[1])
		}
		engines = append(engines, api.Engine{Name: name, Version: m[2]})
	}
	return engines, nil
}

// Describe renders the resolved environment for humans
func (e Environment) Describe() string {
	if len(e.Engines) == 0 {
		return targetName(e.Target)
	}
	parts := make([]string, 0, len(e.Engines))
	for _, engine := range e.Engines {
		parts = append(parts, engineLabel(engine.Name)+engine.Version)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func engineLabel(name api.EngineName) string {
	for label, n := range engineNames {
		if n == name {
			return label
		}
	}
	return "engine"
}

func targetName(t api.Target) string {
	best := ""
	for label, level := range esLevels {
		if level == t && (best == "" || label > best) && label != "es6" {
			best = label
		}
	}
	if best == "" {
		return "default"
	}
	return best
}

// ParseDescriptor accepts the shorthand forms "esmodules", "web", "node"
// and an ES level such as "es2020"
func ParseDescriptor(s string) (types.TargetDescriptor, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "esmodules":
		return types.TargetDescriptor{Platform: types.PlatformWeb, ESModules: true}, nil
	case s == types.PlatformWeb || s == types.PlatformNode:
		return types.TargetDescriptor{Platform: s}, nil
	case strings.HasPrefix(s, "es"):
		return types.TargetDescriptor{Platform: types.PlatformWeb, ES: s}, nil
	}
	return types.TargetDescriptor{}, fmt.Errorf("unknown target %q", s)
}

// DecodeHook lets a descriptor be written as a single string wherever one is
// decoded with mapstructure
func DecodeHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(types.TargetDescriptor{}) {
			return data, nil
		}
		return ParseDescriptor(data.(string))
	}
}
