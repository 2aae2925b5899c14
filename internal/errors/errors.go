// Package errors provides domain-specific error types for rconrelay.
//
// These types carry structured context (operation, address, retryability,
// command outcome) so the client loop can decide how to react to a
// failure and the web layer can turn it into the right HTTP status.
package errors

import (
	"errors"
	"fmt"
	"net"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNotConnected   = errors.New("not connected")
	ErrNotReady       = errors.New("console not ready")
	ErrTimeout        = errors.New("operation timed out")
	ErrTransportLost  = errors.New("connection lost")
	ErrAuthFailed     = errors.New("authentication failed")
	ErrClientClosed   = errors.New("client is closed")
	ErrPacketTooLarge = errors.New("packet too large")
	ErrMalformed      = errors.New("malformed packet")
)

// ── Command outcome ──────────────────────────────────────────────────

// ExecKind classifies why a command did not produce a response.
type ExecKind int

const (
	// NotReady: the session is not authenticated or a command is
	// already outstanding.  No side effects.
	NotReady ExecKind = iota + 1
	// Timeout: no response arrived within the deadline.  The session
	// is left up.
	Timeout
	// TransportLost: the connection dropped while the command was
	// outstanding.
	TransportLost
)

func (k ExecKind) String() string {
	switch k {
	case NotReady:
		return "not ready"
	case Timeout:
		return "timeout"
	case TransportLost:
		return "transport lost"
	default:
		return "unknown"
	}
}

// sentinel maps a kind to the sentinel that errors.Is should match.
func (k ExecKind) sentinel() error {
	switch k {
	case NotReady:
		return ErrNotReady
	case Timeout:
		return ErrTimeout
	case TransportLost:
		return ErrTransportLost
	default:
		return nil
	}
}

// ExecError is the only error type that crosses from the console
// client to its callers.
type ExecError struct {
	Kind    ExecKind
	Command string // the command that failed (may be empty)
	Err     error  // underlying cause (optional)
}

func (e *ExecError) Error() string {
	s := "exec"
	if e.Command != "" {
		s += fmt.Sprintf(" %q", e.Command)
	}
	s += ": " + e.Kind.String()
	if e.Err != nil {
		s += fmt.Sprintf(": %v", e.Err)
	}
	return s
}

func (e *ExecError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind, so callers can write
// errors.Is(err, ErrTimeout) without type assertions.
func (e *ExecError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.  Op "dial"
// is a connect error, op "write" a send error.
type NetworkError struct {
	Op        string // operation: "dial", "write", "read"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "dial"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// Exec creates an ExecError of the given kind.
func Exec(kind ExecKind, command string, err error) *ExecError {
	return &ExecError{Kind: kind, Command: command, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// KindOf returns the ExecKind carried by err, or 0 if err is not an
// ExecError.
func KindOf(err error) ExecKind {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return 0
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
