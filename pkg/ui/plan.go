package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/pipeline"
	"github.com/dustin/go-humanize"
)

// PlanMarkdown renders a build result as a markdown document listing every
// file the bundle holds
func PlanMarkdown(result *pipeline.Result) string {
	var b strings.Builder
	b.WriteString("# Build plan\n\n")
	fmt.Fprintf(&b, "Output `%s`, target `%s`.\n\n", result.OutputDir, result.Target)
	if len(result.Plugins) > 0 {
		quoted := make([]string, len(result.Plugins))
		for i, p := range result.Plugins {
			quoted[i] = "`" + p + "`"
		}
		fmt.Fprintf(&b, "Plugins, in order: %s.\n\n", strings.Join(quoted, ", "))
	}

	outputs := append(result.Outputs[:0:0], result.Outputs...)
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Path < outputs[j].Path })

	b.WriteString("| File | Origin | From | Size |\n")
	b.WriteString("|------|--------|------|------|\n")
	for _, o := range outputs {
		size := "-"
		if result.Manifest != nil {
			if entry, ok := result.Manifest.Files[o.Path]; ok {
				size = humanize.Bytes(uint64(entry.Size))
			}
		}
		from := o.From
		if from == "" {
			from = "-"
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n", o.Path, o.Origin, from, size)
	}
	fmt.Fprintf(&b, "\n%d files, %s.\n", len(outputs), humanize.Bytes(uint64(result.Bytes)))

	if len(result.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}
