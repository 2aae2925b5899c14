package util

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsClosed reports whether err is the expected result of reading from
// or writing to a connection that was closed, by either side.  Such
// errors mark an orderly shutdown rather than a transport failure.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}

// IsAddrInUse reports whether err is a bind failure caused by another
// process already holding the address.
func IsAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
