// Package logging builds the zerolog logger shared by mailtmpl components.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Attribute keys used across packages so log lines stay greppable.
const (
	KeyKey       = "key"
	KeyAction    = "action"
	KeyMethod    = "method"
	KeyURL       = "url"
	KeyStatus    = "status"
	KeyCount     = "count"
	KeyPath      = "path"
	KeyOperation = "operation"
	KeyStrategy  = "strategy"
)

// New returns a human-readable logger writing to w. Debug output is enabled
// when verbose is set; otherwise only info and above are emitted.
func New(w io.Writer, verbose bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	console := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    !IsTerminal(w),
	}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// NewJSON returns a structured logger writing one JSON object per line.
func NewJSON(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// IsTerminal reports whether w is a terminal device.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
