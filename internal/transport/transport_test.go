package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	rcerr "rconrelay/internal/errors"
	"rconrelay/internal/retry"
	"rconrelay/tunnel"
	"rconrelay/util"
)

// TestTCPDialer_Connect verifies that TCPDialer can reach a local
// TCP server and exchange data.
func TestTCPDialer_Connect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello from server\n")) //nolint:errcheck
	}()

	d := &TCPDialer{Timeout: 2 * time.Second}

	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got != "hello from server\n" {
		t.Errorf("got %q, want %q", got, "hello from server\n")
	}
}

// TestTCPDialer_ContextCancel verifies that a cancelled context stops the dial.
func TestTCPDialer_ContextCancel(t *testing.T) {
	d := &TCPDialer{Timeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dial(ctx, "tcp", "127.0.0.1:1")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

// TestTCPDialer_Close verifies Close is a no-op and returns nil.
func TestTCPDialer_Close(t *testing.T) {
	d := &TCPDialer{}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// fakeTunnel counts Connect calls and can be killed to simulate a
// dropped SSH session.
type fakeTunnel struct {
	connects int
	alive    bool
	target   string
	fail     []error // returned by the first Connect calls, in order
}

func (f *fakeTunnel) Connect(context.Context) error {
	f.connects++
	if len(f.fail) > 0 {
		err := f.fail[0]
		f.fail = f.fail[1:]
		return err
	}
	f.alive = true
	return nil
}

func (f *fakeTunnel) Close() error { f.alive = false; return nil }
func (f *fakeTunnel) IsAlive() bool { return f.alive }
func (f *fakeTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, f.target)
}

// TestSSHDialer_ReconnectsDeadTunnel verifies that a tunnel which died
// between dials is re-established instead of failing forever.
func TestSSHDialer_ReconnectsDeadTunnel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	ft := &fakeTunnel{target: ln.Addr().String()}
	d := &SSHDialer{
		tunnel: ft,
		config: &tunnel.SSHConfig{User: "relay", Host: "bastion", Port: 22},
		logger: util.NewLogger(0),
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		conn, err := d.Dial(ctx, "tcp", "rcon.internal:25575")
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		conn.Close()
	}
	if ft.connects != 1 {
		t.Errorf("live tunnel reconnected: connects = %d, want 1", ft.connects)
	}

	ft.alive = false // SSH session dropped
	conn, err := d.Dial(ctx, "tcp", "rcon.internal:25575")
	if err != nil {
		t.Fatalf("dial after drop: %v", err)
	}
	conn.Close()
	if ft.connects != 2 {
		t.Errorf("dead tunnel not re-established: connects = %d, want 2", ft.connects)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if ft.alive {
		t.Error("Close should tear the tunnel down")
	}
}

func newRetryingDialer(ft *fakeTunnel) *SSHDialer {
	return &SSHDialer{
		tunnel: ft,
		config: &tunnel.SSHConfig{User: "relay", Host: "bastion", Port: 22},
		logger: util.NewLogger(0),
		retry:  &retry.Backoff{InitialDelay: time.Millisecond, Multiplier: 2, MaxAttempts: 3},
	}
}

// TestSSHDialer_RetriesTransientTunnelFailure verifies a retryable
// network error gets another attempt within the same Dial.
func TestSSHDialer_RetriesTransientTunnelFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	ft := &fakeTunnel{
		target: ln.Addr().String(),
		fail:   []error{&rcerr.NetworkError{Op: "dial", Addr: "bastion:22", Err: io.EOF, Retryable: true}},
	}
	d := newRetryingDialer(ft)

	conn, err := d.Dial(context.Background(), "tcp", "rcon.internal:25575")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()
	if ft.connects != 2 {
		t.Errorf("connects = %d, want 2", ft.connects)
	}
}

// TestSSHDialer_HandshakeFailureNotRetried verifies SSH-level failures
// end the Dial after a single attempt.
func TestSSHDialer_HandshakeFailureNotRetried(t *testing.T) {
	ft := &fakeTunnel{
		fail: []error{rcerr.WrapSSH("auth", "bastion", 22, io.ErrUnexpectedEOF)},
	}
	d := newRetryingDialer(ft)

	if _, err := d.Dial(context.Background(), "tcp", "rcon.internal:25575"); err == nil {
		t.Fatal("expected an error")
	}
	if ft.connects != 1 {
		t.Errorf("connects = %d, want 1", ft.connects)
	}
}
