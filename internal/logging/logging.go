// Package logging builds the structured logger used by the CLI and the
// pipeline.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/papapumpkin/pares/internal/diag"
)

// Options configures New.
type Options struct {
	Verbose bool
	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// New returns a timestamped key/value logger. Verbose lowers the level to
// DEBUG.
func New(opts Options) *log.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level := log.InfoLevel
	if opts.Verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// Diagnostics logs each diagnostic once: warnings at WARN, notes at INFO.
func Diagnostics(l *log.Logger, ds diag.List) {
	for _, d := range ds {
		kv := []any{"stage", d.Stage, "kind", d.Kind}
		if d.Table != "" {
			kv = append(kv, "table", d.Table)
		}
		if d.Kind.IsWarning() {
			l.Warn(d.Message, kv...)
		} else {
			l.Info(d.Message, kv...)
		}
	}
}
