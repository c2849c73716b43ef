// Package logging installs the process wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

// New returns a charm logger writing to w (stderr when nil) at the named level.
// Unknown levels fall back to info.
func New(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := log.NewWithOptions(w, log.Options{ReportTimestamp: true, Prefix: "crosspost"})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// Setup routes the default slog logger through a charm handler.
func Setup(level string) *log.Logger {
	l := New(nil, level)
	slog.SetDefault(slog.New(l))
	return l
}
