// Package logging builds the charmbracelet/log loggers used by the engine and the daemon.
package logging

import (
	"io"
	"os"
	"strings"

	clog "github.com/charmbracelet/log"
)

// Prefix is attached to every logger built here.
const Prefix = "adminauth"

// New returns a timestamped logger writing to w at the named level
// (debug, info, warn, error). An empty level means warn.
func New(w io.Writer, level string) (*clog.Logger, error) {
	lvl := clog.WarnLevel
	if s := strings.TrimSpace(level); s != "" {
		parsed, err := clog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return nil, err
		}
		lvl = parsed
	}
	if w == nil {
		w = os.Stderr
	}
	return clog.NewWithOptions(w, clog.Options{
		ReportTimestamp: true,
		Prefix:          Prefix,
		Level:           lvl,
	}), nil
}

// Default is a warn-level logger on stderr.
func Default() *clog.Logger {
	l, _ := New(os.Stderr, "")
	return l
}

// Discard drops everything.
func Discard() *clog.Logger {
	return clog.New(io.Discard)
}
