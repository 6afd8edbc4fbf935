package util

import (
	"fmt"
	"io"
	"os"

	"github.com/mirtext/mirtext/pkg/config"
	"github.com/tebeka/atexit"
)

var stderr io.Writer = os.Stderr

// Error prints a formatted error message and exits the program. Handlers
// registered with atexit run before the process terminates.
func Error(format string, args ...interface{}) {
	fmt.Fprint(stderr, "\033[31merror:\033[0m ")
	fmt.Fprintf(stderr, format, args...)
	fmt.Fprintln(stderr)
	atexit.Exit(1)
}

// Warn prints a formatted warning message if the corresponding warning is enabled
func Warn(cfg *config.Config, wt config.Warning, format string, args ...interface{}) {
	if !cfg.IsWarningEnabled(wt) {
		return
	}
	fmt.Fprint(stderr, "\033[33mwarning:\033[0m ")
	fmt.Fprintf(stderr, format, args...)
	fmt.Fprintf(stderr, " [-W%s]\n", cfg.Warnings[wt].Name)
}

func Info(format string, args ...interface{}) {
	fmt.Fprint(stderr, "\033[36minfo:\033[0m ")
	fmt.Fprintf(stderr, format, args...)
	fmt.Fprintln(stderr)
}

// AlignUp rounds n up to the next multiple of align, which must be a power
// of two. Values already on a boundary are returned unchanged.
func AlignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}
