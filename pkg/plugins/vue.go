package plugins

import (
	"context"
	"path"
	"strings"
	"sync/atomic"

	"github.com/arthur-debert/sfcbuild/pkg/rules"
	"github.com/arthur-debert/sfcbuild/pkg/sfc"
	"github.com/arthur-debert/sfcbuild/pkg/types"
)

// ParseFunc parses a component file
type ParseFunc func(rel string, src []byte) (*sfc.Descriptor, error)

// Vue compiles .vue single-file components
type Vue struct {
	parse  ParseFunc
	parsed atomic.Int64
}

// NewVue creates the component compiler plugin
func NewVue() *Vue {
	return NewVueWithParser(sfc.Parse)
}

// NewVueWithParser creates the plugin around a custom parser
func NewVueWithParser(parse ParseFunc) *Vue {
	return &Vue{parse: parse}
}

func (v *Vue) Name() string { return PluginVue }

// Parsed returns how many components were parsed
func (v *Vue) Parsed() int64 { return v.parsed.Load() }

func (v *Vue) Apply(c *Compilation) error {
	development := c.Config.Mode == types.ModeDevelopment
	return c.Loader(".vue", func(ctx context.Context, file rules.File, content []byte) ([]Module, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v.parsed.Add(1)
		desc, err := v.parse(file.Rel, content)
		if err != nil {
			return nil, err
		}
		res, err := sfc.Compile(desc, sfc.Options{Development: development})
		if err != nil {
			return nil, err
		}

		base := strings.TrimSuffix(file.Rel, path.Ext(file.Rel))
		modules := []Module{{Path: base + "." + res.Lang, Content: res.Script, Kind: KindScript}}
		if len(res.CSS) > 0 {
			modules = append(modules, Module{Path: base + ".css", Content: res.CSS, Kind: KindStyle})
		}
		return modules, nil
	})
}
