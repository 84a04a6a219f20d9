package cmd

import (
	"os"

	"github.com/mattn/go-isatty"
)

// StandardErrorIsTerminal returns whether or not standard error is attached to
// a terminal (including mintty-based terminals on Windows).
func StandardErrorIsTerminal() bool {
	descriptor := os.Stderr.Fd()
	return isatty.IsTerminal(descriptor) || isatty.IsCygwinTerminal(descriptor)
}
