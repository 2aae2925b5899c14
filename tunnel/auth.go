package tunnel

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// BuildAuthMethods assembles an ordered list of SSH authentication
// methods from the tunnel configuration.
func BuildAuthMethods(cfg *SSHConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	// 1. Explicit key file
	if cfg.KeyPath != "" {
		m, err := publicKeyAuth(cfg.KeyPath, cfg.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", cfg.KeyPath, err)
		}
		methods = append(methods, m)
	}

	// 2. SSH agent (explicit flag)
	if cfg.UseAgent {
		m, err := agentAuth()
		if err != nil {
			return nil, fmt.Errorf("ssh-agent: %w", err)
		}
		methods = append(methods, m)
	}

	// 3. Password resolved at startup
	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}

	// 4. Fallback: try agent + common key files automatically.
	if len(methods) == 0 {
		methods = defaultAuthMethods()
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf(
			"no SSH authentication methods available – " +
				"use --ssh-key, --ssh-password, or --ssh-agent")
	}
	return methods, nil
}

// KeyNeedsPassphrase reports whether the private key at keyPath is
// encrypted, so the caller can ask for the passphrase up front.
func KeyNeedsPassphrase(keyPath string) (bool, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return false, fmt.Errorf("reading key: %w", err)
	}
	_, err = ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	return errors.As(err, &missing), nil
}

// ── individual auth builders ─────────────────────────────────────────

func publicKeyAuth(keyPath, passphrase string) (ssh.AuthMethod, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("reading key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if !errors.As(err, &missing) {
			return nil, fmt.Errorf("parsing key: %w", err)
		}
		if passphrase == "" {
			return nil, fmt.Errorf("key is encrypted and no passphrase was given")
		}
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("decrypting key: %w", err)
		}
	}
	return ssh.PublicKeys(signer), nil
}

func agentAuth() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("connecting to agent at %s: %w", sock, err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

// defaultAuthMethods tries the agent and the unencrypted common key
// files without any explicit user configuration.
func defaultAuthMethods() []ssh.AuthMethod {
	var out []ssh.AuthMethod

	if m, err := agentAuth(); err == nil {
		out = append(out, m)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return out
	}
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		p := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if m, err := publicKeyAuth(p, ""); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// ── host-key verification ────────────────────────────────────────────

func hostKeyCallback(cfg *SSHConfig) (ssh.HostKeyCallback, error) {
	if !cfg.StrictHostKey {
		//nolint:gosec // user opted out of host key checking
		return ssh.InsecureIgnoreHostKey(), nil
	}

	khFile := cfg.KnownHosts
	if khFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		khFile = filepath.Join(home, ".ssh", "known_hosts")
	}

	cb, err := knownhosts.New(khFile)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts from %s: %w", khFile, err)
	}
	return cb, nil
}
