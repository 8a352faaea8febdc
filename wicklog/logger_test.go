package wicklog

import (
	"bytes"
	"strings"
	"testing"
)

func TestStdLoggerFiltersBelowLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewStdLogger(&buf, LevelWarn)
	l.Debug("should not appear")
	l.Info("should not appear either")
	l.Warn("this one should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("level filtering failed, got: %s", out)
	}
	if !strings.Contains(out, "this one should appear") {
		t.Fatalf("expected warn message in output, got: %s", out)
	}
}

func TestWithAddsPrefixWithoutMutatingReceiver(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := NewStdLogger(&buf, LevelDebug)
	scoped := base.With("tx-123")

	scoped.Info("hello")
	base.Info("world")

	out := buf.String()
	if !strings.Contains(out, "tx-123") {
		t.Fatalf("expected scoped logger's prefix in output, got: %s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %v", len(lines), lines)
	}
	if strings.Contains(lines[1], "tx-123") {
		t.Fatalf("base logger should not have been mutated by With, got: %s", lines[1])
	}
}

func TestNoOpDiscardsEverything(t *testing.T) {
	t.Parallel()
	var l Logger = NoOp{}
	l.Debug("x")
	l.With("y").Error("z")
}
