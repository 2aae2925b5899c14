package tunnel

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	rcerr "rconrelay/internal/errors"
	"rconrelay/util"
)

// SSHConfig holds everything needed to dial an SSH gateway.  Secrets
// are resolved once at startup; nothing here prompts, so the tunnel can
// be re-established unattended.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	KeyPassphrase string
	Password      string
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration
}

// SSHTunnel implements [Tunnel] by opening an SSH connection and
// forwarding traffic with ssh.Client.Dial.
type SSHTunnel struct {
	config *SSHConfig
	client *ssh.Client
	logger *util.Logger
	mu     sync.RWMutex
	alive  bool
}

// NewSSHTunnel creates a tunnel that is ready to [Connect].
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	return &SSHTunnel{config: cfg, logger: logger}
}

// Connect dials the SSH gateway and completes the handshake.  Calling
// Connect on a live tunnel is a no-op; on a dead one it replaces the
// old client.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	if t.IsAlive() {
		return nil
	}

	authMethods, err := BuildAuthMethods(t.config)
	if err != nil {
		return rcerr.WrapSSH("auth", t.config.Host, t.config.Port, err)
	}

	hkCallback, err := hostKeyCallback(t.config)
	if err != nil {
		return rcerr.WrapSSH("hostkey", t.config.Host, t.config.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            t.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         t.config.ConnTimeout,
	}

	addr := util.FormatAddr(t.config.Host, t.config.Port)
	t.logger.Debug("SSH: dialing %s as %s", addr, t.config.User)

	// Use a context-aware TCP dial so callers can cancel.
	var dialer net.Dialer
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return rcerr.Wrap("dial", addr, err)
	}

	// The handshake reads from a raw conn, so bound it by ConnTimeout
	// and by ctx.
	tcpConn.SetDeadline(time.Now().Add(t.config.ConnTimeout)) //nolint:errcheck
	stop := context.AfterFunc(ctx, func() { tcpConn.Close() })
	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if !stop() {
		if err == nil {
			sshConn.Close()
		}
		tcpConn.Close()
		return rcerr.WrapSSH("handshake", t.config.Host, t.config.Port, ctx.Err())
	}
	if err != nil {
		tcpConn.Close()
		return rcerr.WrapSSH("handshake", t.config.Host, t.config.Port, err)
	}
	tcpConn.SetDeadline(time.Time{}) //nolint:errcheck

	client := ssh.NewClient(sshConn, chans, reqs)

	t.mu.Lock()
	old := t.client
	t.client = client
	t.alive = true
	t.mu.Unlock()

	if old != nil {
		old.Close()
	}

	go t.monitor(client)

	return nil
}

// Dial forwards a connection through the tunnel.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.RLock()
	client := t.client
	alive := t.alive
	t.mu.RUnlock()

	if !alive || client == nil {
		return nil, rcerr.ErrNotConnected
	}

	t.logger.Debug("tunnel: dialing %s %s", network, address)

	// ssh.Client.Dial has no context; abandon it if ctx ends first.
	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := client.Dial(network, address)
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("tunnel dial %s: %w", address, r.err)
		}
		return r.conn, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, fmt.Errorf("tunnel dial %s: %w", address, ctx.Err())
	}
}

// Close shuts down the SSH connection.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alive = false
	if t.client != nil {
		err := t.client.Close()
		t.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the tunnel is still connected.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

// monitor blocks until client's connection closes and flips the alive
// flag, unless a newer client has replaced it in the meantime.
func (t *SSHTunnel) monitor(client *ssh.Client) {
	err := client.Wait()

	t.mu.Lock()
	if t.client == client {
		t.alive = false
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Debug("SSH tunnel closed: %v", err)
	} else {
		t.logger.Debug("SSH tunnel closed")
	}
}
