package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestReadSecret_Piped(t *testing.T) {
	in := strings.NewReader("hunter2\r\nsecond\n")
	var out bytes.Buffer

	got, err := readSecret(in, &out, "Password: ")
	if err != nil {
		t.Fatalf("readSecret: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("got %q, want %q", got, "hunter2")
	}
	if out.String() != "Password: " {
		t.Errorf("prompt = %q", out.String())
	}

	// The next line is still there for the next prompt.
	got, err = readSecret(in, &out, "Again: ")
	if err != nil || got != "second" {
		t.Errorf("second read = %q, %v", got, err)
	}
}

func TestReadSecret_NoTrailingNewline(t *testing.T) {
	got, err := readSecret(strings.NewReader("last"), &bytes.Buffer{}, "")
	if err != nil || got != "last" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestReadSecret_EmptyInput(t *testing.T) {
	if _, err := readSecret(strings.NewReader(""), &bytes.Buffer{}, ""); err == nil {
		t.Error("expected an error on empty input")
	}
}
