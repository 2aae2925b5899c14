package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. YAML config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix starts every supported environment variable.
const EnvPrefix = "RCONRELAY_"

// ── Environment variable mapping ─────────────────────────────────────
//
// Boolean values accept "1", "true", "yes" (case-insensitive).
// Durations accept Go syntax ("750ms", "5s") or a bare number of
// seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	// Console server
	if v := env("HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("PORT"); v > 0 {
		cfg.Port = v
	}
	if v := env("PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := envDuration("COMMAND_TIMEOUT"); v > 0 {
		cfg.CommandTimeout = v
	}
	if v := envDuration("RECONNECT_DELAY"); v > 0 {
		cfg.ReconnectDelay = v
	}
	if v := envDuration("DIAL_TIMEOUT"); v > 0 {
		cfg.DialTimeout = v
	}
	if envBool("REASSEMBLE") {
		cfg.Reassemble = true
	}

	// Control surface
	if v := env("LISTEN_HOST"); v != "" {
		cfg.ListenHost = v
	}
	if v := envInt("LISTEN_PORT"); v > 0 {
		cfg.ListenPort = v
	}
	if v := envInt("PORT_ATTEMPTS"); v > 0 {
		cfg.PortAttempts = v
	}
	if v := env("WEB_PASSWORD"); v != "" {
		cfg.WebPassword = v
	}
	if v := env("WEB_PASSWORD_HASH"); v != "" {
		cfg.WebPasswordHash = v
	}
	if v := envInt("MAX_COMMAND_LENGTH"); v > 0 {
		cfg.MaxCommandLength = v
	}
	if v := envDuration("REQUEST_TIMEOUT"); v > 0 {
		cfg.RequestTimeout = v
	}

	// SSH tunnel
	if v := env("TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := env("SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := env("KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func env(key string) string {
	return os.Getenv(EnvPrefix + key)
}

func envInt(key string) int {
	v := env(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(env(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) time.Duration {
	v := env(key)
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil {
		return secondsDuration(n)
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
