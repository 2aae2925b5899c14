package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ReadSecret prints prompt to stderr and reads one line from stdin
// without echo.  When stdin is not a terminal the line is read as-is,
// so secrets can be piped in.
func ReadSecret(prompt string) (string, error) {
	return readSecret(os.Stdin, os.Stderr, prompt)
}

func readSecret(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return string(b), nil
	}

	// One byte at a time: a buffered reader would swallow the lines
	// meant for later prompts.
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n == 1 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if errors.Is(err, io.EOF) {
			if sb.Len() == 0 {
				return "", fmt.Errorf("reading secret: %w", io.ErrUnexpectedEOF)
			}
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
	}
	return strings.TrimRight(sb.String(), "\r"), nil
}
