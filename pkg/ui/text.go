package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/pipeline"
	"github.com/arthur-debert/sfcbuild/pkg/publish"
	"github.com/arthur-debert/sfcbuild/pkg/style"
	"github.com/arthur-debert/sfcbuild/pkg/verify"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// textRenderer writes line-oriented output, styled with lipgloss when the
// destination is a color terminal
type textRenderer struct {
	w      io.Writer
	styled bool
}

func (r *textRenderer) paint(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

func (r *textRenderer) mark(styled, plain string) string {
	if r.styled {
		return styled
	}
	return plain
}

func (r *textRenderer) RenderBuild(result *pipeline.Result) error {
	var b strings.Builder
	verb := "Built"
	if result.DryRun {
		verb = "Planned"
	}
	fmt.Fprintf(&b, "%s %s %s in %s\n",
		r.mark(style.SuccessIndicator, "✓"),
		verb,
		r.paint(style.PathStyle, result.OutputDir),
		result.Duration.Round(1e6))
	fmt.Fprintf(&b, "  %s files, %s (%d transformed, %d copied)\n",
		humanize.Comma(int64(len(result.Outputs))),
		humanize.Bytes(uint64(result.Bytes)),
		result.Transformed,
		result.Copied)
	if result.CacheHits+result.CacheMisses > 0 {
		fmt.Fprintf(&b, "  %s\n", r.paint(style.MutedStyle,
			fmt.Sprintf("cache: %d hits, %d misses", result.CacheHits, result.CacheMisses)))
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(&b, "  %s %s\n", r.mark(style.WarningIndicator, "!"), r.paint(style.WarningStyle, warning))
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *textRenderer) RenderPlan(result *pipeline.Result) error {
	doc := PlanMarkdown(result)
	if r.styled {
		renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err == nil {
			if rendered, err := renderer.Render(doc); err == nil {
				doc = rendered
			}
		}
	}
	_, err := io.WriteString(r.w, doc)
	return err
}

func (r *textRenderer) RenderVerify(report *verify.Report) error {
	var b strings.Builder
	if report.OK() {
		fmt.Fprintf(&b, "%s %s verified: %d files, %d mirrored assets\n",
			r.mark(style.SuccessIndicator, "✓"),
			r.paint(style.PathStyle, report.OutputDir),
			report.Files,
			report.Mirrored)
	} else {
		fmt.Fprintf(&b, "%s %s failed verification with %d problems\n",
			r.mark(style.ErrorIndicator, "✗"),
			r.paint(style.PathStyle, report.OutputDir),
			len(report.Problems))
		for _, p := range report.Problems {
			fmt.Fprintf(&b, "  %s %s\n", r.mark(style.ErrorIndicator, "-"), p.String())
		}
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *textRenderer) RenderPublish(summary *publish.Summary) error {
	_, err := fmt.Fprintf(r.w, "%s Published %d objects (%s) to %s\n",
		r.mark(style.SuccessIndicator, "✓"),
		len(summary.Keys),
		humanize.Bytes(uint64(summary.Bytes)),
		r.paint(style.PathStyle, summary.Bucket))
	return err
}

func (r *textRenderer) RenderError(err error) error {
	if err == nil {
		return nil
	}
	category := errors.CategoryOf(err)
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", r.paint(style.CategoryStyle(category), "Error:"), err.Error())
	if p := errors.PathOf(err); p != "" {
		fmt.Fprintf(&b, "  path: %s\n", r.paint(style.PathStyle, filepath.ToSlash(p)))
	}
	fmt.Fprintf(&b, "  %s\n", r.paint(style.MutedStyle,
		fmt.Sprintf("%s error, exit status %d", category, errors.ExitCode(err))))
	_, werr := io.WriteString(r.w, b.String())
	return werr
}

func (r *textRenderer) RenderMessage(msg string) error {
	_, err := fmt.Fprintf(r.w, "%s %s\n", r.mark(style.InfoIndicator, "•"), msg)
	return err
}
