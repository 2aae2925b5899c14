// Package transport provides abstractions for establishing the raw
// byte stream to a console server.  Transports handle how the socket
// is reached (plain TCP or through an SSH tunnel) independent of what
// is spoken over it, which is the rcon package's job.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.  Implementations include
// a plain TCP dialer and an SSH-tunnelled dialer that routes traffic
// through a bastion host.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
