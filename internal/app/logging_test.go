package app

import (
	"bytes"
	"strings"
	"testing"
)

func newCapturedLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(DefaultLoggerConfig())
	l.SetOutput(&buf)
	l.SetLevel(level)
	return l, &buf
}

func TestLogLevelFiltering(t *testing.T) {
	l, buf := newCapturedLogger(LogLevelWarn)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("below-threshold messages logged: %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("at-threshold messages missing: %q", out)
	}
}

func TestLoggerFormatsArgs(t *testing.T) {
	l, buf := newCapturedLogger(LogLevelDebug)

	l.Info("poll state %s (version=%d)", "Ready", 7)

	if !strings.Contains(buf.String(), "poll state Ready (version=7)") {
		t.Errorf("formatted output missing: %q", buf.String())
	}
}

func TestWithComponentTagsLines(t *testing.T) {
	l, buf := newCapturedLogger(LogLevelDebug)

	l.WithComponent("syntax").Info("kicked")

	if !strings.Contains(buf.String(), "syntax") {
		t.Errorf("component tag missing: %q", buf.String())
	}
}

func TestWithFieldAttachesField(t *testing.T) {
	l, buf := newCapturedLogger(LogLevelDebug)

	l.WithField("doc", "main.go").Info("flushed")

	out := buf.String()
	if !strings.Contains(out, "doc") || !strings.Contains(out, "main.go") {
		t.Errorf("field missing: %q", out)
	}
}

func TestDisableSilencesLogger(t *testing.T) {
	l, buf := newCapturedLogger(LogLevelDebug)

	l.Disable()
	l.Error("should not appear")
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote: %q", buf.String())
	}

	l.Enable()
	l.Error("should appear")
	if buf.Len() == 0 {
		t.Error("re-enabled logger wrote nothing")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{"info", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"error", LogLevelError},
		{"nonsense", LogLevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
