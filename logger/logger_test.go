package logger

import (
	"bytes"
	"errors"
	"log"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-logr/stdr"
)

func TestSLogLoggerWritesPairs(t *testing.T) {
	var buf bytes.Buffer
	l := NewSLogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	l.Info("rule evaluated", "rule", "single_ip", "matched", true, "dangling")
	out := buf.String()
	for _, want := range []string{"rule=single_ip", "matched=true", "dangling=<nil>"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestSLogLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewSLogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug line to be dropped, got %q", buf.String())
	}
}

func TestLogrLoggerLiftsError(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogrLogger(stdr.New(log.New(&buf, "", 0)))
	l.Error("owner lookup failed", "record", "abc", "error", errors.New("store down"))
	out := buf.String()
	if !strings.Contains(out, "store down") || !strings.Contains(out, `"record"="abc"`) {
		t.Fatalf("unexpected logr output %q", out)
	}
}

func TestOrNull(t *testing.T) {
	if _, ok := OrNull(nil).(*NullLogger); !ok {
		t.Fatalf("expected NullLogger for nil input")
	}
	p := NewPhusluLogger("engine")
	if OrNull(p) != Logger(p) {
		t.Fatalf("expected logger to be passed through")
	}
}
