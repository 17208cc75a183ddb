package ui

import (
	"io"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/muesli/termenv"
)

// Format selects how command results are written
type Format int

const (
	// FormatAuto picks FormatTerminal or FormatText per writer
	FormatAuto Format = iota
	FormatTerminal
	FormatText

	// FormatJSON writes one JSON document per command, for scripts and CI
	FormatJSON
)

var formatNames = map[Format]string{
	FormatAuto:     "auto",
	FormatTerminal: "terminal",
	FormatText:     "text",
	FormatJSON:     "json",
}

var formatAliases = map[string]Format{
	"term":  FormatTerminal,
	"plain": FormatText,
}

// FormatNames lists the accepted --format values in help order
func FormatNames() []string {
	return []string{"auto", "terminal", "text", "json"}
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "unknown"
}

// Styled reports whether the format writes colors and glamour markdown
func (f Format) Styled() bool {
	return f == FormatTerminal
}

// ParseFormat parses a --format value. An unknown value is invalid input,
// which exits like any other configuration error.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FormatAuto, nil
	}
	for f, name := range formatNames {
		if name == s {
			return f, nil
		}
	}
	if f, ok := formatAliases[s]; ok {
		return f, nil
	}
	return FormatAuto, errors.Newf(errors.ErrInvalidInput, "unknown format %q", s).
		WithDetail("known", FormatNames())
}

// DetectFormat resolves FormatAuto for w. NO_COLOR and CLICOLOR=0 force
// plain text, CLICOLOR_FORCE forces styling even when piped, and otherwise
// only a color-capable terminal gets styled output.
func DetectFormat(w io.Writer) Format {
	if termenv.EnvNoColor() {
		return FormatText
	}
	if termenv.NewOutput(w).EnvColorProfile() == termenv.Ascii {
		return FormatText
	}
	return FormatTerminal
}
