package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"rconrelay/internal/retry"
	"rconrelay/util"
)

// ShutdownGrace is how long in-flight requests get once Serve's
// context ends.
const ShutdownGrace = 5 * time.Second

// Listen binds host:port.  While the port is taken it moves on to the
// next one, trying attempts ports in total.  Other bind errors fail at
// once.
func Listen(ctx context.Context, host string, port, attempts int, logger *util.Logger) (net.Listener, error) {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = util.NewLogger(0)
	}
	b := &retry.Backoff{InitialDelay: 10 * time.Millisecond, Multiplier: 1, MaxAttempts: attempts}

	var ln net.Listener
	err := b.Do(ctx, func(attempt int) error {
		addr := util.FormatAddr(host, port+attempt-1)
		l, err := net.Listen("tcp", addr)
		if err == nil {
			ln = l
			return nil
		}
		if util.IsAddrInUse(err) && port != 0 {
			logger.Warn("%s is in use, trying the next port", addr)
			return err
		}
		return retry.Permanent(err)
	})
	if err != nil {
		return nil, fmt.Errorf("web listen: %w", err)
	}
	return ln, nil
}

// Serve runs the HTTP server on ln until ctx ends, then shuts it down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("control surface listening on http://%s", ln.Addr())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("web shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
