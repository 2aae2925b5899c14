package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(3) // debug level
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Verbose("v")
	l.Debug("d")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), output)
	}

	wantPrefixes := []string{"[ERR]", "[WRN]", "[INF]", "[VRB]", "[DBG]"}
	for i, prefix := range wantPrefixes {
		if !strings.Contains(lines[i], prefix) {
			t.Errorf("line %d %q missing prefix %q", i, lines[i], prefix)
		}
	}
}

func TestLogger_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(0) // quiet
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Info("should not appear")
	l.Verbose("should not appear")
	l.Debug("should not appear")
	l.Error("always appears")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 1 {
		t.Errorf("expected 1 line in quiet mode, got %d:\n%s", len(lines), output)
	}
}

func TestLogger_Timestamps(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(true)

	l.Info("test")

	output := buf.String()
	// Timestamp format is "HH:MM:SS.mmm"
	if !strings.Contains(output, ":") || len(output) < 15 {
		t.Errorf("expected timestamp prefix, got %q", output)
	}
}

func TestLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Named("rcon").Named("conn").Info("connected")

	if got, want := buf.String(), "[INF] rcon.conn: connected\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLogger_NamedSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	child := l.Named("web")

	// Redirecting the parent after the child exists must affect both.
	l.SetOutput(&buf)
	l.SetTimestamps(false)
	child.Warn("slow request")

	if !strings.Contains(buf.String(), "[WRN] web: slow request") {
		t.Errorf("child output not redirected: %q", buf.String())
	}
}

func TestRedact(t *testing.T) {
	if got := Redact(""); got != "(empty)" {
		t.Errorf("Redact(\"\") = %q", got)
	}
	if got := Redact("hunter2"); strings.Contains(got, "hunter2") {
		t.Errorf("Redact leaked the secret: %q", got)
	}
}
