// Package rcon implements a persistent client for game-server remote
// console (RCON) servers.
//
// A [Client] keeps one authenticated connection alive for as long as it
// runs, reconnecting after a fixed delay whenever the connection fails
// or the password is rejected.  The protocol carries no usable request
// correlation, so the client allows exactly one command in flight and
// treats the next inbound message as its response.
//
// All session state is owned by the goroutine running [Client.Run].
// Inbound events, command submissions, dial results and timer firings
// reach it over channels and are handled one at a time, in order.
package rcon

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	rcerr "rconrelay/internal/errors"
	"rconrelay/internal/metrics"
	"rconrelay/internal/retry"
	"rconrelay/internal/transport"
	"rconrelay/util"
)

const (
	// DefaultCommandTimeout bounds the wait for a command's response.
	DefaultCommandTimeout = 5 * time.Second
	// DefaultReconnectDelay is the fixed wait before reconnecting.
	DefaultReconnectDelay = 5 * time.Second
)

// Transport is what the client needs from a connection.  [*Conn]
// implements it.
type Transport interface {
	Authenticate(password string) error
	Send(command string) error
	Events() <-chan Event
	Close() error
}

// OpenFunc opens a fresh transport to the console server.
type OpenFunc func(ctx context.Context) (Transport, error)

// DialOpener returns an OpenFunc that dials addr through d.
func DialOpener(d transport.Dialer, addr string, timeout time.Duration, opts ConnOptions) OpenFunc {
	return func(ctx context.Context) (Transport, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		c, err := Dial(ctx, d, addr, opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Config configures a [Client].  Open and Password are required.
type Config struct {
	Open     OpenFunc
	Password string

	// CommandTimeout bounds each command (default 5s).
	CommandTimeout time.Duration
	// AuthTimeout bounds the wait for the auth verdict (default
	// CommandTimeout).
	AuthTimeout time.Duration
	// Reconnect paces reconnection (default a fixed 5s delay).
	Reconnect *retry.Backoff

	Logger  *util.Logger
	Metrics *metrics.Collector

	// OnStateChange is called on every transition.  It runs on the
	// client loop, so keep it fast and do not call back into the client.
	OnStateChange func(from, to State)
}

// Client is a persistent console client.  Create it with [New], start
// it with [Client.Run], and submit commands with [Client.Execute] or
// [Client.ExecuteAsync].
type Client struct {
	cfg    Config
	logger *util.Logger

	state   atomic.Int32
	ready   atomic.Bool
	started atomic.Bool

	requests chan *pending
	stopped  chan struct{}
}

// New creates a client.  It does not connect until Run is called.
func New(cfg Config) *Client {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = cfg.CommandTimeout
	}
	if cfg.Reconnect == nil {
		cfg.Reconnect = retry.Fixed(DefaultReconnectDelay)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Client{
		cfg:      cfg,
		logger:   logger,
		requests: make(chan *pending),
		stopped:  make(chan struct{}),
	}
}

// State returns the current session state.
func (c *Client) State() State { return State(c.state.Load()) }

// IsReady reports whether the session is authenticated.
func (c *Client) IsReady() bool { return c.ready.Load() }

// Done is closed once Run has returned.
func (c *Client) Done() <-chan struct{} { return c.stopped }

// Execute sends command and waits for its response.  Errors are
// *errors.ExecError values, except when ctx ends first, in which case
// ctx.Err() is returned and the eventual outcome is discarded.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	type result struct {
		response string
		err      error
	}
	ch := make(chan result, 1)
	c.ExecuteAsync(command, func(response string, err error) {
		ch <- result{response, err}
	})

	select {
	case r := <-ch:
		return r.response, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ExecuteAsync sends command and calls onDone exactly once with the
// outcome, always on a goroutine of its own.  Callers must not submit
// another command before onDone has fired.
func (c *Client) ExecuteAsync(command string, onDone func(response string, err error)) {
	if onDone == nil {
		onDone = func(string, error) {}
	}
	p := &pending{command: command, onDone: onDone, enqueued: time.Now()}

	if err := ValidateCommand(command); err != nil {
		// Nothing was sent; callers only ever see ExecError values.
		p.resolve("", rcerr.Exec(rcerr.NotReady, command, fmt.Errorf("invalid command: %w", err)))
		return
	}
	if !c.ready.Load() {
		c.cfg.Metrics.CommandRejected()
		p.resolve("", rcerr.Exec(rcerr.NotReady, command, nil))
		return
	}

	select {
	case c.requests <- p:
	case <-c.stopped:
		p.resolve("", rcerr.Exec(rcerr.NotReady, command, rcerr.ErrClientClosed))
	}
}

// Run drives the session until ctx is cancelled.  It connects
// immediately and keeps reconnecting forever; it only returns once ctx
// is done, after closing the connection and failing any outstanding
// command.
func (c *Client) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("rcon client is already running")
	}
	defer close(c.stopped)

	l := &loop{c: c, dials: make(chan dialResult, 1)}
	defer l.shutdown()

	l.connect(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-l.dials:
			l.handleDial(r)
		case ev, ok := <-l.events():
			l.handleEvent(ev, ok)
		case p := <-c.requests:
			l.handleRequest(p)
		case <-l.reconnectC:
			l.reconnectC, l.reconnectTimer = nil, nil
			l.connect(ctx)
		case <-l.authC:
			l.authC, l.authTimer = nil, nil
			l.handleAuthTimeout()
		case <-l.commandC:
			l.commandC, l.commandTimer = nil, nil
			l.handleCommandTimeout()
		}
	}
}

// ── loop-owned state ─────────────────────────────────────────────────

// session is one live connection.  It is never reused: a new one is
// built only after the previous one's transport has fully closed.
type session struct {
	gen    uint64
	t      Transport
	events <-chan Event
	authed bool
}

type dialResult struct {
	gen uint64
	t   Transport
	err error
}

// loop holds everything the Run goroutine owns.  Nothing else touches
// it.
type loop struct {
	c *Client

	gen        uint64
	sess       *session
	dials      chan dialResult
	dialing    bool
	cancelDial context.CancelFunc
	failures   int

	pending *pending

	reconnectTimer *time.Timer
	reconnectC     <-chan time.Time
	authTimer      *time.Timer
	authC          <-chan time.Time
	commandTimer   *time.Timer
	commandC       <-chan time.Time
}

func (l *loop) events() <-chan Event {
	if l.sess == nil {
		return nil
	}
	return l.sess.events
}

func (l *loop) setState(to State) {
	from := State(l.c.state.Swap(int32(to)))
	if from == to {
		return
	}
	l.c.logger.Verbose("session %s -> %s", from, to)
	if l.c.cfg.OnStateChange != nil {
		l.c.cfg.OnStateChange(from, to)
	}
}

// connect starts a dial in the background; its result comes back on
// l.dials.
func (l *loop) connect(ctx context.Context) {
	l.stopReconnect()

	l.gen++
	gen := l.gen
	dctx, cancel := context.WithCancel(ctx)
	l.cancelDial = cancel
	l.dialing = true
	l.setState(StateConnecting)

	go func() {
		t, err := l.c.cfg.Open(dctx)
		l.dials <- dialResult{gen: gen, t: t, err: err}
	}()
}

func (l *loop) handleDial(r dialResult) {
	l.dialing = false
	l.cancelDial()

	if r.gen != l.gen {
		if r.t != nil {
			r.t.Close()
		}
		return
	}
	if r.err != nil {
		l.c.logger.Error("connect failed: %v", r.err)
		l.c.cfg.Metrics.RecordError(r.err.Error())
		l.setState(StateDisconnected)
		l.scheduleReconnect()
		return
	}

	l.sess = &session{gen: r.gen, t: r.t, events: r.t.Events()}
	l.setState(StateAuthenticating)
	l.c.logger.Debug("authenticating with password %s", util.Redact(l.c.cfg.Password))

	if err := r.t.Authenticate(l.c.cfg.Password); err != nil {
		l.teardown(err)
		return
	}
	l.authTimer = time.NewTimer(l.c.cfg.AuthTimeout)
	l.authC = l.authTimer.C
}

func (l *loop) handleEvent(ev Event, ok bool) {
	if !ok {
		// Stream ended without a terminal event.
		l.teardown(rcerr.ErrTransportLost)
		return
	}

	switch ev.Kind {
	case EventAuthResult:
		l.stopAuthTimer()
		if l.c.State() != StateAuthenticating {
			l.c.logger.Debug("ignoring auth result in state %s", l.c.State())
			return
		}
		if !ev.OK {
			l.c.logger.Error("%v: password rejected by server", rcerr.ErrAuthFailed)
			l.c.cfg.Metrics.AuthFailed()
			l.c.cfg.Metrics.RecordError(rcerr.ErrAuthFailed.Error())
			l.teardown(rcerr.ErrAuthFailed)
			return
		}
		l.sess.authed = true
		l.failures = 0
		l.c.ready.Store(true)
		l.c.cfg.Metrics.Ready()
		l.setState(StateReady)
		l.c.logger.Info("console session ready")

	case EventMessage:
		if l.pending == nil {
			l.c.logger.Warn("discarding response with no command outstanding (%d bytes)", len(ev.Text))
			l.c.cfg.Metrics.LateResponse()
			return
		}
		p := l.pending
		l.clearPending()
		l.c.cfg.Metrics.CommandAnswered(time.Since(p.enqueued))
		p.resolve(ev.Text, nil)

	case EventClosed:
		l.c.logger.Warn("connection closed by server")
		l.teardown(rcerr.ErrTransportLost)

	case EventError:
		l.c.logger.Error("connection error: %v", ev.Err)
		l.c.cfg.Metrics.RecordError(ev.Err.Error())
		l.teardown(ev.Err)
	}
}

func (l *loop) handleRequest(p *pending) {
	if !l.c.ready.Load() || l.pending != nil {
		l.c.cfg.Metrics.CommandRejected()
		p.resolve("", rcerr.Exec(rcerr.NotReady, p.command, nil))
		return
	}

	l.pending = p
	l.c.cfg.Metrics.CommandSent()
	l.c.logger.Verbose("exec %q", p.command)

	if err := l.sess.t.Send(p.command); err != nil {
		l.c.logger.Error("send failed: %v", err)
		l.c.cfg.Metrics.RecordError(err.Error())
		l.teardown(err)
		return
	}
	l.commandTimer = time.NewTimer(l.c.cfg.CommandTimeout)
	l.commandC = l.commandTimer.C
}

// handleCommandTimeout fails the pending command but keeps the
// session: a slow server is not a dead one.
func (l *loop) handleCommandTimeout() {
	if l.pending == nil {
		return
	}
	p := l.pending
	l.clearPending()
	l.c.logger.Warn("command %q timed out after %v", p.command, l.c.cfg.CommandTimeout)
	l.c.cfg.Metrics.CommandTimedOut()
	p.resolve("", rcerr.Exec(rcerr.Timeout, p.command, nil))
}

func (l *loop) handleAuthTimeout() {
	if l.c.State() != StateAuthenticating {
		return
	}
	l.c.logger.Error("no auth response within %v", l.c.cfg.AuthTimeout)
	l.teardown(rcerr.ErrTimeout)
}

// teardown destroys the current session, fails any pending command and
// schedules the next connection attempt.
func (l *loop) teardown(cause error) {
	l.c.ready.Store(false)
	l.stopAuthTimer()

	if l.pending != nil {
		p := l.pending
		l.clearPending()
		l.c.cfg.Metrics.CommandLost()
		p.resolve("", rcerr.Exec(rcerr.TransportLost, p.command, cause))
	}

	if l.sess != nil {
		if err := l.sess.t.Close(); err != nil && !util.IsClosed(err) {
			l.c.logger.Debug("closing session %d: %v", l.sess.gen, err)
		}
		l.sess = nil
	}

	l.setState(StateDisconnected)
	l.scheduleReconnect()
}

// scheduleReconnect arms the reconnect timer, replacing any timer
// already armed so at most one is ever pending.
func (l *loop) scheduleReconnect() {
	l.stopReconnect()
	l.failures++
	delay := l.c.cfg.Reconnect.Delay(l.failures)
	l.c.cfg.Metrics.Reconnect()
	l.c.logger.Info("reconnecting in %v", delay)
	l.reconnectTimer = time.NewTimer(delay)
	l.reconnectC = l.reconnectTimer.C
}

func (l *loop) clearPending() {
	l.pending = nil
	if l.commandTimer != nil {
		l.commandTimer.Stop()
		l.commandTimer, l.commandC = nil, nil
	}
}

func (l *loop) stopReconnect() {
	if l.reconnectTimer != nil {
		l.reconnectTimer.Stop()
		l.reconnectTimer, l.reconnectC = nil, nil
	}
}

func (l *loop) stopAuthTimer() {
	if l.authTimer != nil {
		l.authTimer.Stop()
		l.authTimer, l.authC = nil, nil
	}
}

// shutdown runs when Run returns.
func (l *loop) shutdown() {
	l.c.ready.Store(false)
	l.stopReconnect()
	l.stopAuthTimer()

	if l.pending != nil {
		p := l.pending
		l.clearPending()
		p.resolve("", rcerr.Exec(rcerr.TransportLost, p.command, rcerr.ErrClientClosed))
	}
	if l.sess != nil {
		l.sess.t.Close()
		l.sess = nil
	}
	if l.dialing {
		l.cancelDial()
		if r := <-l.dials; r.t != nil {
			r.t.Close()
		}
		l.dialing = false
	}
	l.setState(StateDisconnected)
}
