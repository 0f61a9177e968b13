package logger

import (
	"errors"

	"github.com/go-logr/logr"
)

// LogrLogger adapts a logr.Logger. Debug lines go to verbosity level 1.
type LogrLogger struct {
	l logr.Logger
}

func NewLogrLogger(l logr.Logger) *LogrLogger {
	return &LogrLogger{l: l}
}

func (g *LogrLogger) Debug(msg string, keyvals ...any) {
	g.l.V(1).Info(msg, flatten(keyvals)...)
}

func (g *LogrLogger) Info(msg string, keyvals ...any) {
	g.l.Info(msg, flatten(keyvals)...)
}

// Error lifts the first error-typed value out of keyvals into logr's error
// argument.
func (g *LogrLogger) Error(msg string, keyvals ...any) {
	var err error
	rest := make([]any, 0, len(keyvals))
	pairs(keyvals, func(k string, v any) {
		if e, ok := v.(error); ok && err == nil {
			err = e
			return
		}
		rest = append(rest, k, v)
	})
	if err == nil {
		err = errors.New(msg)
	}
	g.l.Error(err, msg, rest...)
}

func flatten(keyvals []any) []any {
	out := make([]any, 0, len(keyvals)+1)
	pairs(keyvals, func(k string, v any) {
		out = append(out, k, v)
	})
	return out
}
