package tugraz

import (
	"errors"
	"time"

	"github.com/tu-graz-library/invenio-config-tugraz/logger"
)

// WithLogger installs a Logger on the Engine. Decisions are logged at debug
// level.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) error {
		e.logger = logger.OrNull(l)
		return nil
	}
}

// WithTraceIDFunc installs a trace ID generator; every decision carries the
// generated ID.
func WithTraceIDFunc(f logger.TraceIDFunc) EngineOption {
	return func(e *Engine) error {
		e.traceIDFunc = f
		return nil
	}
}

// WithClock replaces the decision timestamp source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		e.now = now
		return nil
	}
}
