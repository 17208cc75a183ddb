// Package ui renders command results as styled terminal output, plain text
// or JSON.
package ui

import (
	"fmt"
	"io"

	"github.com/arthur-debert/sfcbuild/pkg/pipeline"
	"github.com/arthur-debert/sfcbuild/pkg/publish"
	"github.com/arthur-debert/sfcbuild/pkg/verify"
)

// Renderer is the common interface for all output renderers
type Renderer interface {
	// RenderBuild summarises a finished build
	RenderBuild(result *pipeline.Result) error

	// RenderPlan lists what a dry run would emit
	RenderPlan(result *pipeline.Result) error

	RenderVerify(report *verify.Report) error
	RenderPublish(summary *publish.Summary) error

	// RenderError renders an error with its category and exit code
	RenderError(err error) error

	// RenderMessage renders a simple message
	RenderMessage(msg string) error
}

// NewRenderer creates a renderer for format. Auto is resolved against output
// with DetectFormat.
func NewRenderer(format Format, output io.Writer) (Renderer, error) {
	switch format {
	case FormatAuto:
		return NewRenderer(DetectFormat(output), output)
	case FormatTerminal, FormatText:
		return &textRenderer{w: output, styled: format.Styled()}, nil
	case FormatJSON:
		return &jsonRenderer{w: output}, nil
	default:
		return nil, fmt.Errorf("unknown format: %v", format)
	}
}
