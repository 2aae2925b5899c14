package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	rcerr "rconrelay/internal/errors"
	"rconrelay/internal/retry"
	"rconrelay/tunnel"
	"rconrelay/util"
)

// tunnelBackoff paces the few quick retries of one tunnel setup.  The
// console client's own reconnect delay covers anything longer.
func tunnelBackoff() *retry.Backoff {
	return &retry.Backoff{
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
		MaxAttempts:  3,
		Jitter:       true,
	}
}

// SSHDialer routes connections through an SSH tunnel.  The tunnel is
// connected lazily on the first Dial and re-established on a later
// Dial if it has died in the meantime.
type SSHDialer struct {
	tunnel tunnel.Tunnel
	config *tunnel.SSHConfig
	logger *util.Logger
	retry  *retry.Backoff
	mu     sync.Mutex
}

// NewSSHDialer creates a dialer that forwards connections through an
// SSH tunnel.  The tunnel is not connected until the first Dial.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	return &SSHDialer{
		tunnel: tunnel.NewSSHTunnel(cfg, logger),
		config: cfg,
		logger: logger,
		retry:  tunnelBackoff(),
	}
}

// connect establishes the SSH tunnel if it is not currently alive.
func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tunnel.IsAlive() {
		return nil
	}

	d.logger.Verbose("establishing SSH tunnel to %s@%s:%d",
		d.config.User, d.config.Host, d.config.Port)

	b := d.retry
	if b == nil {
		b = tunnelBackoff()
	}
	// Transient network failures are retried; auth, host key and
	// handshake failures are not.
	err := b.Do(ctx, func(attempt int) error {
		err := d.tunnel.Connect(ctx)
		if err == nil {
			return nil
		}
		if !rcerr.IsRetryable(err) {
			return retry.Permanent(err)
		}
		d.logger.Verbose("SSH tunnel attempt %d failed: %v", attempt, err)
		return err
	})
	if err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}

	d.logger.Verbose("SSH tunnel established")
	return nil
}

// Dial connects to address through the SSH tunnel.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the underlying SSH tunnel.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tunnel.Close()
}
