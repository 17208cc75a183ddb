package ui

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

// Progress shows a spinner while a long step runs. The zero value and a
// Progress started on a non-interactive writer do nothing.
type Progress struct {
	spinner *pterm.SpinnerPrinter
}

// Interactive reports whether w is a terminal
func Interactive(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

// StartProgress starts a spinner on w when it is a terminal
func StartProgress(w io.Writer, text string) *Progress {
	if !Interactive(w) {
		return &Progress{}
	}
	spinner, err := pterm.DefaultSpinner.
		WithWriter(w).
		WithRemoveWhenDone(true).
		Start(text)
	if err != nil {
		return &Progress{}
	}
	return &Progress{spinner: spinner}
}

// Stop removes the spinner
func (p *Progress) Stop() {
	if p == nil || p.spinner == nil {
		return
	}
	_ = p.spinner.Stop()
	p.spinner = nil
}
