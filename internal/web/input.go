package web

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// CleanCommand trims surrounding whitespace and rejects input that
// cannot be a single console command.
func CleanCommand(raw string, maxLen int) (string, error) {
	cmd := strings.TrimSpace(raw)
	switch {
	case cmd == "":
		return "", fmt.Errorf("command is empty")
	case len(cmd) > maxLen:
		return "", fmt.Errorf("command is longer than %d bytes", maxLen)
	case strings.ContainsAny(cmd, "\r\n\x00"):
		return "", fmt.Errorf("command must be a single line")
	case !utf8.ValidString(cmd):
		return "", fmt.Errorf("command is not valid UTF-8")
	}
	return cmd, nil
}
