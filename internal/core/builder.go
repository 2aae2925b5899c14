package core

import (
	"rconrelay/config"
	"rconrelay/internal/metrics"
	"rconrelay/internal/rcon"
	"rconrelay/internal/retry"
	"rconrelay/internal/transport"
	"rconrelay/internal/web"
	"rconrelay/tunnel"
	"rconrelay/util"
)

// Build wires a validated Config into a runnable Relay: dialer →
// console client → web control surface, all sharing one logger and one
// metrics collector.
func Build(cfg *config.Config, logger *util.Logger) (*Relay, error) {
	m := metrics.New()
	dialer := buildDialer(cfg, logger)

	client := rcon.New(rcon.Config{
		Open: rcon.DialOpener(dialer, cfg.RCONAddr(), cfg.DialTimeout, rcon.ConnOptions{
			Reassemble: cfg.Reassemble,
			Logger:     logger.Named("conn"),
			Metrics:    m,
		}),
		Password:       cfg.Password,
		CommandTimeout: cfg.CommandTimeout,
		Reconnect:      retry.Fixed(cfg.ReconnectDelay),
		Logger:         logger.Named("rcon"),
		Metrics:        m,
	})

	srv, err := web.New(web.Config{
		Password:         cfg.WebPassword,
		PasswordHash:     cfg.WebPasswordHash,
		MaxCommandLength: cfg.MaxCommandLength,
		RequestTimeout:   cfg.RequestTimeout,
		Logger:           logger.Named("web"),
		Metrics:          m,
	}, client)
	if err != nil {
		dialer.Close()
		return nil, err
	}

	return &Relay{
		Dialer:       dialer,
		Client:       client,
		Web:          srv,
		Metrics:      m,
		ListenHost:   cfg.ListenHost,
		ListenPort:   cfg.ListenPort,
		PortAttempts: cfg.PortAttempts,
		Logger:       logger,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			KeyPassphrase: cfg.SSHKeyPassphrase,
			Password:      cfg.SSHPasswordValue,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.DialTimeout,
		}, logger.Named("ssh"))
	}

	return &transport.TCPDialer{Timeout: cfg.DialTimeout}
}
