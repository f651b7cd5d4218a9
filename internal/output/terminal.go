package output

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ShouldColor reports whether colored output should be written to w.
// NO_COLOR and FORCE_COLOR take precedence over terminal detection.
func ShouldColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}

	f, ok := w.(*os.File)
	if !ok || !checkIsTerminal(f) {
		return false
	}

	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}

// checkIsTerminal checks if the file is a terminal.
func checkIsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
