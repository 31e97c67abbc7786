// Package logger provides named, leveled loggers for every long-lived
// component (orchestrator, each session, disk writer),
// wrapping github.com/cenkalti/log the way cenkalti/rain's own
// internal/logger package does.
package logger

import clog "github.com/cenkalti/log"

// Logger is the logging surface every component depends on.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Debugln(args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Notice(args ...interface{})
	Noticef(format string, args ...interface{})
	Warning(args ...interface{})
	Warningf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Errorln(args ...interface{})
}

// New returns a Logger tagged with name, e.g. "session peer1.2.3.4:6881"
// or "orchestrator".
func New(name string) Logger {
	return clog.NewLogger(name)
}

// SetLevel sets the minimum level emitted by every Logger returned
// from New, matching the CLI's --debug flag.
func SetLevel(debug bool) {
	if debug {
		clog.SetLevel(clog.DEBUG)
	} else {
		clog.SetLevel(clog.INFO)
	}
}
