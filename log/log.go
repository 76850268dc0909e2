// Package log wraps a logr.Logger with the Info/Debug/Audit split the
// rest of this repo calls through, the way Boulder's blog.Logger does
// over syslog.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"log/syslog"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// Logger is the logging interface every component takes.
type Logger interface {
	Info(msg string)
	Debug(msg string)
	Err(msg string)
	// Audit logs a message that must never be silently dropped:
	// issuance, revocation, offer claims, admin resets.
	Audit(msg string)
	AuditErr(msg string)
}

type logger struct {
	impl logr.Logger
}

// New builds a Logger that writes to the local syslog daemon under the
// given tag, falling back to stderr if syslog is unreachable (e.g. in
// containers with no syslog socket).
func New(tag string) Logger {
	var out *stdlog.Logger
	if w, err := syslog.New(syslog.LOG_INFO, tag); err == nil {
		out = stdlog.New(w, "", 0)
	} else {
		out = stdlog.New(os.Stderr, tag+": ", stdlog.LstdFlags)
	}
	stdr.SetVerbosity(1)
	return &logger{impl: stdr.New(out)}
}

func (l *logger) Info(msg string)     { l.impl.Info(msg) }
func (l *logger) Debug(msg string)    { l.impl.V(1).Info(msg) }
func (l *logger) Err(msg string)      { l.impl.Error(fmt.Errorf("%s", msg), msg) }
func (l *logger) Audit(msg string)    { l.impl.Info("AUDIT: " + msg) }
func (l *logger) AuditErr(msg string) { l.impl.Error(fmt.Errorf("%s", msg), "AUDIT") }

// NewMock returns a Logger that discards everything, for tests.
func NewMock() Logger {
	return &logger{impl: stdr.New(stdlog.New(io.Discard, "", 0))}
}
