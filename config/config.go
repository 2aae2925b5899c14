// Package config defines the runtime configuration for rconrelay and
// the helpers that fill it from defaults, a YAML file, the environment
// and the command line.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	rcerr "rconrelay/internal/errors"
	"rconrelay/util"
)

// Config holds every tuneable for one relay process.
type Config struct {
	// ── Console server ───────────────────────────────────────────────
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Password       string        `yaml:"password"`
	PromptPassword bool          `yaml:"-"` // true → read the password from the terminal
	CommandTimeout time.Duration `yaml:"command_timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	Reassemble     bool          `yaml:"reassemble"`

	// ── Control surface ──────────────────────────────────────────────
	ListenHost       string        `yaml:"listen_host"`
	ListenPort       int           `yaml:"listen_port"`
	PortAttempts     int           `yaml:"port_attempts"`
	WebPassword      string        `yaml:"web_password"`
	WebPasswordHash  string        `yaml:"web_password_hash"`
	MaxCommandLength int           `yaml:"max_command_length"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string `yaml:"tunnel"` // raw [user@]host[:port]
	TunnelEnabled  bool   `yaml:"-"`
	TunnelUser     string `yaml:"-"`
	TunnelHost     string `yaml:"-"`
	TunnelPort     int    `yaml:"-"`
	SSHKeyPath     string `yaml:"ssh_key"`
	SSHPassword    bool   `yaml:"-"` // true → prompt interactively
	UseSSHAgent    bool   `yaml:"ssh_agent"`
	StrictHostKey  bool   `yaml:"strict_host_key"`
	KnownHostsPath string `yaml:"known_hosts"`

	// Resolved at startup from prompts, never from files.
	SSHPasswordValue string `yaml:"-"`
	SSHKeyPassphrase string `yaml:"-"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose int `yaml:"verbose"`
}

// Default returns a Config populated with the values from defaults.go.
func Default() *Config {
	return &Config{
		Port:             DefaultRCONPort,
		CommandTimeout:   DefaultCommandTimeout,
		ReconnectDelay:   DefaultReconnectDelay,
		DialTimeout:      DefaultDialTimeout,
		ListenHost:       DefaultListenHost,
		ListenPort:       DefaultListenPort,
		PortAttempts:     DefaultPortAttempts,
		MaxCommandLength: DefaultMaxCommandLength,
		RequestTimeout:   DefaultRequestTimeout,
		Verbose:          1,
	}
}

// RCONAddr is the console server's host:port.
func (c *Config) RCONAddr() string {
	return util.FormatAddr(c.Host, c.Port)
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ApplyTunnelSpec parses TunnelSpec into the Tunnel* fields.  An empty
// spec disables the tunnel.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		c.TunnelEnabled = false
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &rcerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: err.Error()}
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &rcerr.ConfigError{
			Field:   "host",
			Message: "console server host is required",
			Hint:    "pass it as the first argument or set RCONRELAY_HOST",
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &rcerr.ConfigError{Field: "port", Value: c.Port, Message: "must be between 1 and 65535"}
	}
	if c.Password == "" && !c.PromptPassword {
		return &rcerr.ConfigError{
			Field:   "password",
			Message: "console password is required",
			Hint:    "use --password-prompt, or set RCONRELAY_PASSWORD",
		}
	}
	if c.WebPassword == "" && c.WebPasswordHash == "" {
		return &rcerr.ConfigError{
			Field:   "web-password",
			Message: "a password for the web form is required",
			Hint:    "generate a hash with --hash-password and set RCONRELAY_WEB_PASSWORD_HASH",
		}
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return &rcerr.ConfigError{Field: "listen-port", Value: c.ListenPort, Message: "must be between 0 and 65535"}
	}
	if c.PortAttempts < 1 {
		return &rcerr.ConfigError{Field: "port-attempts", Value: c.PortAttempts, Message: "must be at least 1"}
	}
	if c.CommandTimeout <= 0 {
		return &rcerr.ConfigError{Field: "command-timeout", Value: c.CommandTimeout, Message: "must be positive"}
	}
	if c.RequestTimeout <= c.CommandTimeout {
		return &rcerr.ConfigError{
			Field:   "request-timeout",
			Value:   c.RequestTimeout,
			Message: fmt.Sprintf("must be longer than the command timeout (%s)", c.CommandTimeout),
			Hint:    "a form request waits for the command and then for its answer",
		}
	}
	if c.ReconnectDelay <= 0 {
		return &rcerr.ConfigError{Field: "reconnect-delay", Value: c.ReconnectDelay, Message: "must be positive"}
	}
	if c.MaxCommandLength < 1 || c.MaxCommandLength > MaxCommandLengthLimit {
		return &rcerr.ConfigError{
			Field:   "max-command-length",
			Value:   c.MaxCommandLength,
			Message: fmt.Sprintf("must be between 1 and %d", MaxCommandLengthLimit),
			Hint:    "longer commands do not fit in a single console packet",
		}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &rcerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: "tunnel host is required"}
	}
	if c.StrictHostKey && !c.TunnelEnabled {
		return &rcerr.ConfigError{Field: "strict-hostkey", Message: "only applies with --tunnel"}
	}
	return nil
}
