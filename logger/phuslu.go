package logger

import (
	"fmt"

	phlog "github.com/oarkflow/log"
)

// PhusluLogger writes through the oarkflow/log package. Component, when set,
// is attached to every line.
type PhusluLogger struct {
	Component string
}

func NewPhusluLogger(component string) *PhusluLogger {
	return &PhusluLogger{Component: component}
}

func (p *PhusluLogger) Debug(msg string, keyvals ...any) {
	emit(phlog.Debug(), p.Component, msg, keyvals)
}

func (p *PhusluLogger) Info(msg string, keyvals ...any) {
	emit(phlog.Info(), p.Component, msg, keyvals)
}

func (p *PhusluLogger) Error(msg string, keyvals ...any) {
	emit(phlog.Error(), p.Component, msg, keyvals)
}

// entry is the chained field API of a log entry. Disabled levels hand out a
// nil entry whose methods are no-ops.
type entry[E any] interface {
	Str(key, val string) E
	Bool(key string, b bool) E
	Int(key string, i int) E
	Any(key string, v any) E
	Msg(msg string)
}

func emit[E entry[E]](e E, component, msg string, keyvals []any) {
	if component != "" {
		e = e.Str("component", component)
	}
	pairs(keyvals, func(k string, v any) {
		switch vv := v.(type) {
		case string:
			e = e.Str(k, vv)
		case bool:
			e = e.Bool(k, vv)
		case int:
			e = e.Int(k, vv)
		case error:
			e = e.Str(k, vv.Error())
		case fmt.Stringer:
			e = e.Str(k, vv.String())
		default:
			e = e.Any(k, vv)
		}
	})
	e.Msg(msg)
}

func stringify(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
