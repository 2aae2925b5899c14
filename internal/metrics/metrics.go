// Package metrics provides lightweight, lock-free counters for the
// console relay: connection churn, command outcomes and wire traffic.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one console client.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	reconnects        atomic.Int64
	authFailures      atomic.Int64
	bytesIn           atomic.Int64
	bytesOut          atomic.Int64
	commandsTotal     atomic.Int64
	commandsRejected  atomic.Int64
	commandsTimedOut  atomic.Int64
	commandsLost      atomic.Int64
	lateResponses     atomic.Int64
	errorsTotal       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastReady    time.Time
	lastError    time.Time
	lastErrorMsg string
	lastLatency  time.Duration
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// Reconnect records a scheduled reconnection.
func (c *Collector) Reconnect() {
	if c == nil {
		return
	}
	c.reconnects.Add(1)
}

// Reconnects returns the total number of scheduled reconnections.
func (c *Collector) Reconnects() int64 {
	if c == nil {
		return 0
	}
	return c.reconnects.Load()
}

// AuthFailed records a rejected credential.
func (c *Collector) AuthFailed() {
	if c == nil {
		return
	}
	c.authFailures.Add(1)
}

// Ready records a successful authentication.
func (c *Collector) Ready() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lastReady = time.Now()
	c.mu.Unlock()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Command metrics ──────────────────────────────────────────────────

// CommandSent records a command handed to the transport.
func (c *Collector) CommandSent() {
	if c == nil {
		return
	}
	c.commandsTotal.Add(1)
}

// CommandAnswered records the round-trip latency of a resolved command.
func (c *Collector) CommandAnswered(latency time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lastLatency = latency
	c.mu.Unlock()
}

// CommandRejected records a command refused with NotReady.
func (c *Collector) CommandRejected() {
	if c == nil {
		return
	}
	c.commandsRejected.Add(1)
}

// CommandTimedOut records a command that got no response in time.
func (c *Collector) CommandTimedOut() {
	if c == nil {
		return
	}
	c.commandsTimedOut.Add(1)
}

// CommandLost records a command failed by a dropped connection.
func (c *Collector) CommandLost() {
	if c == nil {
		return
	}
	c.commandsLost.Add(1)
}

// LateResponse records a message that arrived with nothing pending.
func (c *Collector) LateResponse() {
	if c == nil {
		return
	}
	c.lateResponses.Add(1)
}

// TotalCommands returns the number of commands sent.
func (c *Collector) TotalCommands() int64 {
	if c == nil {
		return 0
	}
	return c.commandsTotal.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	Reconnects        int64  `json:"reconnects"`
	AuthFailures      int64  `json:"auth_failures"`
	BytesIn           int64  `json:"bytes_in"`
	BytesOut          int64  `json:"bytes_out"`
	CommandsTotal     int64  `json:"commands_total"`
	CommandsRejected  int64  `json:"commands_rejected"`
	CommandsTimedOut  int64  `json:"commands_timed_out"`
	CommandsLost      int64  `json:"commands_lost"`
	LateResponses     int64  `json:"late_responses"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastLatency       string `json:"last_latency,omitempty"`
	LastReady         string `json:"last_ready,omitempty"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		Reconnects:        c.reconnects.Load(),
		AuthFailures:      c.authFailures.Load(),
		BytesIn:           c.bytesIn.Load(),
		BytesOut:          c.bytesOut.Load(),
		CommandsTotal:     c.commandsTotal.Load(),
		CommandsRejected:  c.commandsRejected.Load(),
		CommandsTimedOut:  c.commandsTimedOut.Load(),
		CommandsLost:      c.commandsLost.Load(),
		LateResponses:     c.lateResponses.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if c.lastLatency > 0 {
		s.LastLatency = c.lastLatency.String()
	}
	if !c.lastReady.IsZero() {
		s.LastReady = c.lastReady.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
