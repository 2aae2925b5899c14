// Package core is the orchestration layer.  It composes the transport,
// the console client and the web control surface into one service and
// provides a builder that assembles it from a Config.
//
// Architecture layers (bottom → top):
//
//	tunnel → transport → rcon → web → core → cmd (CLI)
package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"rconrelay/internal/metrics"
	"rconrelay/internal/rcon"
	"rconrelay/internal/transport"
	"rconrelay/internal/web"
	"rconrelay/util"
)

// Relay owns the full lifecycle of one running relay.
type Relay struct {
	Dialer  transport.Dialer
	Client  *rcon.Client
	Web     *web.Server
	Metrics *metrics.Collector

	ListenHost   string
	ListenPort   int
	PortAttempts int
	Logger       *util.Logger

	// OnListen, when set, receives the bound address.
	OnListen func(net.Addr)
}

// Run binds the control surface, starts the console client and serves
// until ctx is cancelled.  Shutdown stops the web server first, then the
// client (failing any outstanding command), then the dialer.
func (r *Relay) Run(ctx context.Context) error {
	ln, err := web.Listen(ctx, r.ListenHost, r.ListenPort, r.PortAttempts, r.Logger)
	if err != nil {
		r.Dialer.Close()
		return err
	}
	if r.OnListen != nil {
		r.OnListen(ln.Addr())
	}

	clientCtx, stopClient := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := r.Client.Run(clientCtx); err != nil {
			r.Logger.Error("console client: %v", err)
		}
	}()

	serveErr := r.Web.Serve(ctx, ln)

	stopClient()
	wg.Wait()

	var errs []error
	if serveErr != nil {
		errs = append(errs, fmt.Errorf("serve: %w", serveErr))
	}
	if err := r.Dialer.Close(); err != nil && !util.IsClosed(err) {
		errs = append(errs, fmt.Errorf("close dialer: %w", err))
	}
	r.Logger.Verbose("relay stopped\n%s", r.Metrics.JSON())
	return errors.Join(errs...)
}
