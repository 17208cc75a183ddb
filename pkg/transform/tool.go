package transform

import (
	"context"

	"github.com/arthur-debert/sfcbuild/pkg/registry"
	"github.com/arthur-debert/sfcbuild/pkg/target"
)

// Input is one file handed to a tool
type Input struct {
	// Path is slash-separated and relative to the project root
	Path    string
	Content []byte

	// Options are the rule's tool options, untouched
	Options map[string]interface{}

	// Env is the pipeline's resolved target; a rule may override it
	Env    target.Environment
	Minify bool
}

// Tool rewrites file content. Tools must be safe for concurrent use.
type Tool interface {
	Name() string
	Transform(ctx context.Context, in Input) ([]byte, error)
}

// Built-in tool names
const (
	ToolEsbuild     = "esbuild"
	ToolPassthrough = "passthrough"
)

// NewRegistry returns a registry holding the built-in tools
func NewRegistry() registry.Registry[Tool] {
	reg := registry.New[Tool]()
	registry.MustRegister[Tool](reg, ToolEsbuild, NewEsbuild())
	registry.MustRegister[Tool](reg, ToolPassthrough, Passthrough{})
	return reg
}

// Passthrough returns its input unchanged. It lets a rule claim files, for
// instance to vendor them, without rewriting them.
type Passthrough struct{}

func (Passthrough) Name() string { return ToolPassthrough }

func (Passthrough) Transform(ctx context.Context, in Input) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return in.Content, nil
}
