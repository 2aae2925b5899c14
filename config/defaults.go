package config

import (
	"time"

	"rconrelay/internal/rcon"
)

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultRCONPort is the Minecraft RCON port; Source servers use
	// their game port (usually 27015).
	DefaultRCONPort = 25575

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultCommandTimeout bounds the wait for one command's response.
	DefaultCommandTimeout = rcon.DefaultCommandTimeout

	// DefaultReconnectDelay is the fixed wait between reconnect attempts.
	DefaultReconnectDelay = rcon.DefaultReconnectDelay

	// DefaultDialTimeout is the TCP/SSH connection timeout.
	DefaultDialTimeout = 10 * time.Second

	// DefaultListenHost keeps the form off public interfaces unless
	// asked otherwise.
	DefaultListenHost = "127.0.0.1"

	// DefaultListenPort is the control surface's first choice of port.
	DefaultListenPort = 8080

	// DefaultPortAttempts is how many consecutive ports Listen tries.
	DefaultPortAttempts = 10

	// DefaultMaxCommandLength caps what the form accepts.
	DefaultMaxCommandLength = 1024

	// MaxCommandLengthLimit is the longest command one packet can carry.
	MaxCommandLengthLimit = rcon.MaxCommandSize

	// DefaultRequestTimeout bounds one form submission end to end.
	DefaultRequestTimeout = 15 * time.Second
)
