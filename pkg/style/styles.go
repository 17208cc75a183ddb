// Package style holds the lipgloss styles of the terminal output
package style

import (
	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/plugins"
	"github.com/charmbracelet/lipgloss"
)

// Base styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(HeadingColor).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	PathStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)
)

// Operation indicator styles
var (
	SuccessIndicator = SuccessStyle.Render("✓")
	ErrorIndicator   = ErrorStyle.Render("✗")
	WarningIndicator = WarningStyle.Render("!")
	InfoIndicator    = InfoStyle.Render("•")
)

// OriginStyle colors a bundle file by where it came from
func OriginStyle(origin string) lipgloss.Style {
	base := lipgloss.NewStyle()
	switch origin {
	case plugins.OriginSource:
		return base.Foreground(SourceColor)
	case plugins.OriginDependency:
		return base.Foreground(DependencyColor)
	case plugins.OriginCopy:
		return base.Foreground(CopyColor)
	case plugins.OriginPublic:
		return base.Foreground(PublicColor)
	default:
		return base.Foreground(MutedColor)
	}
}

// CategoryStyle colors an error by category
func CategoryStyle(category errors.Category) lipgloss.Style {
	switch category {
	case errors.CategoryConfig:
		return WarningStyle
	case errors.CategoryResource:
		return ErrorStyle
	case errors.CategoryTransform:
		return lipgloss.NewStyle().Foreground(DependencyColor).Bold(true)
	default:
		return ErrorStyle
	}
}

func Bold(s string) string {
	return lipgloss.NewStyle().Bold(true).Render(s)
}
