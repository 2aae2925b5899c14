package rcon

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	rcerr "rconrelay/internal/errors"
	"rconrelay/internal/metrics"
	"rconrelay/internal/transport"
	"rconrelay/util"
)

// EventKind identifies what a transport [Event] reports.
type EventKind int

const (
	// EventAuthResult carries the server's verdict on the password.
	EventAuthResult EventKind = iota + 1
	// EventMessage carries one response body (or one reassembled
	// response when reassembly is on).
	EventMessage
	// EventClosed reports an orderly close by either side.
	EventClosed
	// EventError reports a read failure.  Err is set.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventAuthResult:
		return "auth-result"
	case EventMessage:
		return "message"
	case EventClosed:
		return "closed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one item of a connection's inbound stream.
type Event struct {
	Kind EventKind
	OK   bool   // EventAuthResult
	Text string // EventMessage
	Err  error  // EventError
}

// ConnOptions tunes a [Conn].
type ConnOptions struct {
	// Reassemble joins multi-packet responses into one message by
	// sending a marker packet after each command.  Only enable it for
	// servers that echo empty response-value packets (Source engine).
	Reassemble bool
	// WriteTimeout bounds each packet write (default 5s).
	WriteTimeout time.Duration
	Logger       *util.Logger
	Metrics      *metrics.Collector
}

// Conn is an open console-protocol connection.  It frames outgoing
// packets and turns inbound packets into a stream of [Event]s read by a
// single background goroutine.  The stream ends, and the channel is
// closed, after the first EventClosed or EventError.
type Conn struct {
	nc     net.Conn
	addr   string
	opts   ConnOptions
	logger *util.Logger

	events chan Event
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	wmu    sync.Mutex
	lastID int32 // guarded by wmu
	authID atomic.Int32

	// With reassembly on: the command being answered, nil once its
	// marker has come back.
	inflight atomic.Pointer[exchange]
}

// exchange pairs a command id with the id of the marker that follows
// it.  Both are published together so the reader never sees one
// command's id next to another's marker.
type exchange struct {
	cmd, mark int32
}

// Dial opens a connection to addr through d.  Failures are
// *errors.NetworkError values with Op "dial".
func Dial(ctx context.Context, d transport.Dialer, addr string, opts ConnOptions) (*Conn, error) {
	nc, err := d.Dial(ctx, "tcp", addr)
	if err != nil {
		return nil, rcerr.Wrap("dial", addr, err)
	}
	return NewConn(nc, addr, opts), nil
}

// NewConn wraps an established byte stream and starts reading it.
func NewConn(nc net.Conn, addr string, opts ConnOptions) *Conn {
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = util.NewLogger(0)
	}
	c := &Conn{
		nc:     nc,
		addr:   addr,
		opts:   opts,
		logger: logger,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	c.authID.Store(authFailedID)
	opts.Metrics.ConnectionOpened()

	c.wg.Add(1)
	go c.readLoop()
	return c
}

// Events returns the inbound event stream.
func (c *Conn) Events() <-chan Event { return c.events }

// Authenticate submits the password.  The verdict arrives as an
// EventAuthResult.
func (c *Conn) Authenticate(password string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	id := c.nextID()
	c.authID.Store(id)
	return c.write(Packet{ID: id, Type: TypeAuth, Body: password})
}

// Send writes one command.  With reassembly on it is followed by an
// empty marker packet; the server answers it only after the whole
// response, so its echo delimits the response.
func (c *Conn) Send(command string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	id := c.nextID()
	if !c.opts.Reassemble {
		return c.write(Packet{ID: id, Type: TypeExecCommand, Body: command})
	}

	mark := c.nextID()
	c.inflight.Store(&exchange{cmd: id, mark: mark})
	if err := c.write(Packet{ID: id, Type: TypeExecCommand, Body: command}); err != nil {
		return err
	}
	return c.write(Packet{ID: mark, Type: TypeResponseValue})
}

// Close releases the socket and waits for the reader to exit.  It is
// safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.nc.Close()
		c.wg.Wait()
		c.opts.Metrics.ConnectionClosed()
	})
	return err
}

// nextID returns the next positive request id.  Callers hold wmu.
func (c *Conn) nextID() int32 {
	c.lastID++
	if c.lastID <= 0 {
		c.lastID = 1
	}
	return c.lastID
}

// write frames p under the write deadline.  Callers hold wmu.
func (c *Conn) write(p Packet) error {
	select {
	case <-c.done:
		return rcerr.Wrap("write", c.addr, rcerr.ErrNotConnected)
	default:
	}

	c.nc.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)) //nolint:errcheck
	n, err := WritePacket(c.nc, p)
	c.opts.Metrics.BytesSent(int64(n))
	if err != nil {
		return rcerr.Wrap("write", c.addr, err)
	}
	c.logger.Debug("-> id=%d type=%d len=%d", p.ID, p.Type, p.Len())
	return nil
}

// readLoop is the only sender on c.events.
func (c *Conn) readLoop() {
	defer c.wg.Done()
	defer close(c.events)

	r := bufio.NewReader(c.nc)
	authed := false
	var (
		partial strings.Builder
		partOf  int32
	)

	for {
		p, n, err := ReadPacket(r)
		c.opts.Metrics.BytesReceived(int64(n))
		if err != nil {
			select {
			case <-c.done:
				// Closed locally; nobody is listening any more.
				return
			default:
			}
			if util.IsClosed(err) {
				c.emit(Event{Kind: EventClosed})
			} else {
				c.emit(Event{Kind: EventError, Err: rcerr.Wrap("read", c.addr, err)})
			}
			return
		}
		c.logger.Debug("<- id=%d type=%d len=%d", p.ID, p.Type, p.Len())

		if !authed {
			if p.Type != TypeAuthResponse {
				// Source servers send an empty response-value first.
				continue
			}
			switch p.ID {
			case authFailedID:
				c.emit(Event{Kind: EventAuthResult, OK: false})
			case c.authID.Load():
				authed = true
				c.emit(Event{Kind: EventAuthResult, OK: true})
			default:
				c.logger.Debug("ignoring auth response with unknown id %d", p.ID)
			}
			continue
		}

		if !c.opts.Reassemble {
			if !c.emit(Event{Kind: EventMessage, Text: p.Body}) {
				return
			}
			continue
		}

		ex := c.inflight.Load()
		if ex != nil && p.ID == ex.mark {
			// Some servers answer the marker twice; only the first
			// closes the response.
			if !c.inflight.CompareAndSwap(ex, nil) {
				continue
			}
			text := ""
			if partOf == ex.cmd {
				text = partial.String()
			}
			partial.Reset()
			partOf = 0
			if !c.emit(Event{Kind: EventMessage, Text: text}) {
				return
			}
			continue
		}

		if ex != nil && p.ID == ex.cmd {
			if partOf != ex.cmd {
				partial.Reset()
				partOf = ex.cmd
			}
			partial.WriteString(p.Body)
			continue
		}
		// Leftovers of an earlier command, or a repeated marker echo.
		c.logger.Debug("dropping stray packet id=%d", p.ID)
	}
}

// emit delivers e unless the connection is being closed.
func (c *Conn) emit(e Event) bool {
	select {
	case c.events <- e:
		return true
	case <-c.done:
		return false
	}
}
