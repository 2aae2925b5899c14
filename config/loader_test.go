package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnv_Strings(t *testing.T) {
	t.Setenv("RCONRELAY_HOST", "mc.example.com")
	t.Setenv("RCONRELAY_PASSWORD", "hunter2")
	t.Setenv("RCONRELAY_WEB_PASSWORD_HASH", "$2a$10$x")
	t.Setenv("RCONRELAY_TUNNEL", "ops@bastion")
	t.Setenv("RCONRELAY_KNOWN_HOSTS", "/tmp/kh")

	cfg := Default()
	LoadFromEnv(cfg)

	if cfg.Host != "mc.example.com" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.Password != "hunter2" {
		t.Errorf("Password = %q", cfg.Password)
	}
	if cfg.WebPasswordHash != "$2a$10$x" {
		t.Errorf("WebPasswordHash = %q", cfg.WebPasswordHash)
	}
	if cfg.TunnelSpec != "ops@bastion" {
		t.Errorf("TunnelSpec = %q", cfg.TunnelSpec)
	}
	if cfg.KnownHostsPath != "/tmp/kh" {
		t.Errorf("KnownHostsPath = %q", cfg.KnownHostsPath)
	}
}

func TestLoadFromEnv_Numbers(t *testing.T) {
	t.Setenv("RCONRELAY_PORT", "27015")
	t.Setenv("RCONRELAY_LISTEN_PORT", "9090")
	t.Setenv("RCONRELAY_PORT_ATTEMPTS", "3")
	t.Setenv("RCONRELAY_VERBOSE", "3")

	cfg := Default()
	LoadFromEnv(cfg)

	if cfg.Port != 27015 || cfg.ListenPort != 9090 || cfg.PortAttempts != 3 || cfg.Verbose != 3 {
		t.Errorf("got port=%d listen=%d attempts=%d verbose=%d",
			cfg.Port, cfg.ListenPort, cfg.PortAttempts, cfg.Verbose)
	}
}

func TestLoadFromEnv_Durations(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"7", 7 * time.Second},
		{"750ms", 750 * time.Millisecond},
		{"2m", 2 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("RCONRELAY_COMMAND_TIMEOUT", tt.value)
			cfg := Default()
			LoadFromEnv(cfg)
			if cfg.CommandTimeout != tt.want {
				t.Errorf("CommandTimeout = %v, want %v", cfg.CommandTimeout, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	for _, v := range []string{"1", "true", "yes", "TRUE", "Yes"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("RCONRELAY_REASSEMBLE", v)
			t.Setenv("RCONRELAY_SSH_AGENT", v)
			cfg := Default()
			LoadFromEnv(cfg)
			if !cfg.Reassemble || !cfg.UseSSHAgent {
				t.Errorf("Reassemble=%v UseSSHAgent=%v, want both true", cfg.Reassemble, cfg.UseSSHAgent)
			}
		})
	}
}

func TestLoadFromEnv_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("RCONRELAY_PORT", "abc")
	t.Setenv("RCONRELAY_RECONNECT_DELAY", "soon")
	t.Setenv("RCONRELAY_REASSEMBLE", "maybe")

	cfg := Default()
	LoadFromEnv(cfg)

	if cfg.Port != DefaultRCONPort {
		t.Errorf("Port = %d, want default", cfg.Port)
	}
	if cfg.ReconnectDelay != DefaultReconnectDelay {
		t.Errorf("ReconnectDelay = %v, want default", cfg.ReconnectDelay)
	}
	if cfg.Reassemble {
		t.Error("Reassemble should stay false")
	}
}

func TestLoadFromEnv_EmptyDoesNotOverride(t *testing.T) {
	cfg := Default()
	cfg.Host = "keep.me"
	t.Setenv("RCONRELAY_HOST", "")
	LoadFromEnv(cfg)
	if cfg.Host != "keep.me" {
		t.Errorf("Host = %q, empty env must not override", cfg.Host)
	}
}

// ── YAML file ────────────────────────────────────────────────────────

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_Overlay(t *testing.T) {
	path := writeFile(t, `
host: mc.example.com
port: 27015
password: from-file
command_timeout: 3s
reassemble: true
listen_port: 9000
tunnel: ops@bastion:2222
strict_host_key: true
`)
	cfg := Default()
	if err := LoadFile(cfg, path, false); err != nil {
		t.Fatal(err)
	}

	if cfg.Host != "mc.example.com" || cfg.Port != 27015 || cfg.Password != "from-file" {
		t.Errorf("console fields: %+v", cfg)
	}
	if cfg.CommandTimeout != 3*time.Second {
		t.Errorf("CommandTimeout = %v", cfg.CommandTimeout)
	}
	if !cfg.Reassemble || !cfg.StrictHostKey {
		t.Error("booleans not applied")
	}
	if cfg.ListenPort != 9000 || cfg.TunnelSpec != "ops@bastion:2222" {
		t.Errorf("ListenPort=%d TunnelSpec=%q", cfg.ListenPort, cfg.TunnelSpec)
	}
	// Keys absent from the file keep their defaults.
	if cfg.ReconnectDelay != DefaultReconnectDelay || cfg.ListenHost != DefaultListenHost {
		t.Errorf("defaults lost: ReconnectDelay=%v ListenHost=%q", cfg.ReconnectDelay, cfg.ListenHost)
	}
}

func TestLoadFile_EnvWinsOverFile(t *testing.T) {
	path := writeFile(t, "host: from-file\n")
	t.Setenv("RCONRELAY_HOST", "from-env")

	cfg := Default()
	if err := LoadFile(cfg, path, false); err != nil {
		t.Fatal(err)
	}
	LoadFromEnv(cfg)
	if cfg.Host != "from-env" {
		t.Errorf("Host = %q, want from-env", cfg.Host)
	}
}

func TestLoadFile_UnknownKey(t *testing.T) {
	path := writeFile(t, "hostname: typo.example.com\n")
	err := LoadFile(Default(), path, false)
	if err == nil || !strings.Contains(err.Error(), "hostname") {
		t.Fatalf("expected unknown-field error, got %v", err)
	}
}

func TestLoadFile_Empty(t *testing.T) {
	path := writeFile(t, "")
	if err := LoadFile(Default(), path, false); err != nil {
		t.Fatalf("empty file should be accepted: %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if err := LoadFile(Default(), missing, true); err != nil {
		t.Errorf("optional missing file: %v", err)
	}
	if err := LoadFile(Default(), missing, false); err == nil {
		t.Error("required missing file should fail")
	}
}

func TestDefaultPath_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultPath(); got != filepath.Join("/xdg", "rconrelay", "config.yaml") {
		t.Errorf("DefaultPath = %q", got)
	}
}
