// Package combilog provides the run-wide logger pair, matching the
// teacher's cmd/dep/loggers.go Loggers shape: two standard loggers and a
// verbosity flag, threaded through constructors rather than held in a
// package-level global.
package combilog

import (
	"io"
	"log"
)

// Loggers holds standard loggers and a verbosity flag.
type Loggers struct {
	Out, Err *log.Logger
	Verbose  bool
}

// New returns Loggers writing to out/err with no line prefix.
func New(out, err io.Writer, verbose bool) *Loggers {
	return &Loggers{
		Out:     log.New(out, "", 0),
		Err:     log.New(err, "", 0),
		Verbose: verbose,
	}
}

// Infof logs an informational line to Out.
func (l *Loggers) Infof(format string, args ...interface{}) {
	l.Out.Printf(format, args...)
}

// Debugf logs to Out only when Verbose is set, matching spec.md §4.3's
// "debug notice (not an error)" for unknown directive names.
func (l *Loggers) Debugf(format string, args ...interface{}) {
	if l.Verbose {
		l.Out.Printf("debug: "+format, args...)
	}
}

// Warnf logs a warning line to Err, used for the non-aborting conflict and
// unprovided-symbol diagnostics of spec.md §4.2 and §7.
func (l *Loggers) Warnf(format string, args ...interface{}) {
	l.Err.Printf("warning: "+format, args...)
}

// Errorf logs an error line to Err.
func (l *Loggers) Errorf(format string, args ...interface{}) {
	l.Err.Printf("error: "+format, args...)
}
