package logger

// Logger is the structured logging surface used by rules, stores and the
// engine. keyvals are alternating key/value pairs.
type Logger interface {
	Error(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}

// TraceIDFunc generates a correlation ID attached to decision log lines.
// It must be safe for concurrent calls.
type TraceIDFunc func() string

// OrNull returns l, or a NullLogger when l is nil.
func OrNull(l Logger) Logger {
	if l == nil {
		return NewNullLogger()
	}
	return l
}

// pairs walks keyvals two at a time. A trailing key without a value is
// reported with a nil value so it does not vanish silently.
func pairs(keyvals []any, fn func(key string, val any)) {
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = stringify(keyvals[i])
		}
		var val any
		if i+1 < len(keyvals) {
			val = keyvals[i+1]
		}
		fn(key, val)
	}
}
