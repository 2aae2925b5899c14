// Package cmd wires up the CLI flags and runs the relay.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	flag "github.com/spf13/pflag"

	"rconrelay/config"
	"rconrelay/internal/core"
	rcerr "rconrelay/internal/errors"
	"rconrelay/internal/web"
	"rconrelay/tunnel"
	"rconrelay/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X rconrelay/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Swapped out by tests.
var readSecret = util.ReadSecret //nolint:gochecknoglobals
var stdout io.Writer = os.Stdout //nolint:gochecknoglobals

// options are the flags that steer the CLI itself rather than the relay.
type options struct {
	configPath   string
	verbose      int
	quiet        bool
	dryRun       bool
	hashPassword bool
	showVersion  bool
	showHelp     bool
}

// Execute parses args and runs the relay until ctx ends.
func Execute(ctx context.Context, args []string) error {
	// First pass: only --config matters, the rest is parsed again once
	// the file and environment have been applied.
	var first options
	if err := newFlagSet(config.Default(), &first).Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if first.configPath != "" {
		if err := config.LoadFile(cfg, first.configPath, false); err != nil {
			return err
		}
	} else if err := config.LoadFile(cfg, config.DefaultPath(), true); err != nil {
		return err
	}
	config.LoadFromEnv(cfg)

	var opts options
	fs := newFlagSet(cfg, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}

	// A host from the file or environment is enough to start.
	if opts.showHelp || (len(args) == 0 && cfg.Host == "") {
		printUsage(fs)
		return nil
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "rconrelay %s\n", version)
		return nil
	}
	if opts.hashPassword {
		return printHash()
	}

	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}
	if err := cfg.ApplyTunnelSpec(); err != nil {
		return err
	}
	cfg.Verbose += opts.verbose
	if opts.quiet {
		cfg.Verbose = 0
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if opts.dryRun {
		printSummary(cfg)
		return nil
	}

	if err := resolveSecrets(cfg); err != nil {
		return err
	}

	logger := util.NewLogger(cfg.Verbose)
	relay, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return relay.Run(ctx)
}

// newFlagSet binds every flag to cfg, using cfg's current values as
// the defaults so file and environment settings survive unless a flag
// overrides them.
func newFlagSet(cfg *config.Config, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet("rconrelay", flag.ContinueOnError)
	fs.SortFlags = false

	// ── console server ───────────────────────────────────────────
	fs.BoolVar(&cfg.PromptPassword, "password-prompt", cfg.PromptPassword, "Prompt for the console password")
	fs.DurationVar(&cfg.CommandTimeout, "command-timeout", cfg.CommandTimeout, "How long a command may wait for its response")
	fs.DurationVar(&cfg.ReconnectDelay, "reconnect-delay", cfg.ReconnectDelay, "Delay before reconnecting after a drop")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "Timeout for opening the console connection")
	fs.BoolVar(&cfg.Reassemble, "reassemble", cfg.Reassemble, "Join responses split over several packets")

	// ── web control surface ──────────────────────────────────────
	fs.StringVar(&cfg.ListenHost, "listen-host", cfg.ListenHost, "Address the web form binds to")
	fs.IntVarP(&cfg.ListenPort, "listen-port", "l", cfg.ListenPort, "Port the web form binds to")
	fs.IntVar(&cfg.PortAttempts, "port-attempts", cfg.PortAttempts, "Ports to try while the listen port is taken")
	fs.StringVar(&cfg.WebPasswordHash, "web-password-hash", cfg.WebPasswordHash, "bcrypt hash of the web form password")
	fs.IntVar(&cfg.MaxCommandLength, "max-command-length", cfg.MaxCommandLength, "Longest command the form accepts")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Upper bound on one web request")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&o.verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&o.quiet, "quiet", "q", false, "Only print errors")

	// ── misc ─────────────────────────────────────────────────────
	fs.StringVarP(&o.configPath, "config", "c", "", "YAML config file")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Validate the configuration and exit")
	fs.BoolVar(&o.hashPassword, "hash-password", false, "Read a password and print its bcrypt hash")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&o.showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }
	return fs
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional takes <host> [port] or <host:port>.  Either may
// already come from the file or environment.
func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0:
	case 1:
		if host, port, err := util.SplitAddr(remaining[0]); err == nil {
			cfg.Host, cfg.Port = host, port
			return nil
		}
		cfg.Host = remaining[0]
	case 2:
		cfg.Host = remaining[0]
		port, err := strconv.Atoi(remaining[1])
		if err != nil {
			return &rcerr.ConfigError{Field: "port", Value: remaining[1], Message: "not a number"}
		}
		cfg.Port = port
	default:
		return fmt.Errorf("too many arguments (use --help for usage)")
	}
	return nil
}

// resolveSecrets asks for everything that was requested interactively.
// It runs once, before anything connects, so reconnects never prompt.
func resolveSecrets(cfg *config.Config) error {
	if cfg.PromptPassword {
		pw, err := readSecret("Console password: ")
		if err != nil {
			return err
		}
		if pw == "" {
			return &rcerr.ConfigError{Field: "password", Message: "console password is required"}
		}
		cfg.Password = pw
	}

	if !cfg.TunnelEnabled {
		return nil
	}
	if cfg.SSHPassword {
		pw, err := readSecret(fmt.Sprintf("%s@%s's password: ", cfg.TunnelUser, cfg.TunnelHost))
		if err != nil {
			return err
		}
		cfg.SSHPasswordValue = pw
	}
	if cfg.SSHKeyPath != "" {
		need, err := tunnel.KeyNeedsPassphrase(cfg.SSHKeyPath)
		if err != nil {
			return fmt.Errorf("ssh key %s: %w", cfg.SSHKeyPath, err)
		}
		if need {
			pp, err := readSecret(fmt.Sprintf("Passphrase for %s: ", cfg.SSHKeyPath))
			if err != nil {
				return err
			}
			cfg.SSHKeyPassphrase = pp
		}
	}
	return nil
}

func printHash() error {
	pw, err := readSecret("Web password: ")
	if err != nil {
		return err
	}
	hash, err := web.HashPassword(pw)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, hash)
	return nil
}

func printSummary(cfg *config.Config) {
	fmt.Fprintf(stdout, "console   %s (password %s)\n", cfg.RCONAddr(), secretState(cfg.Password, cfg.PromptPassword))
	if cfg.TunnelEnabled {
		fmt.Fprintf(stdout, "tunnel    %s\n", util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort))
	}
	fmt.Fprintf(stdout, "web form  %s (+%d ports)\n", util.FormatAddr(cfg.ListenHost, cfg.ListenPort), cfg.PortAttempts-1)
	fmt.Fprintf(stdout, "timeouts  command %s, reconnect %s, request %s\n",
		cfg.CommandTimeout, cfg.ReconnectDelay, cfg.RequestTimeout)
	fmt.Fprintln(stdout, "configuration OK")
}

func secretState(value string, prompt bool) string {
	switch {
	case prompt:
		return "prompted"
	case value != "":
		return util.Redact(value)
	default:
		return "unset"
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `rconrelay – web relay for game-server consoles v%s

Serves a password-protected form that forwards one command at a time
to a remote RCON console over a persistent, self-healing connection.

Usage:
  rconrelay [options] <host> [port]
  rconrelay [options] <host:port>

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment:
  RCONRELAY_PASSWORD, RCONRELAY_WEB_PASSWORD, RCONRELAY_WEB_PASSWORD_HASH
  and one RCONRELAY_* variable per option.

Examples:
  rconrelay mc.example.com                       Console on port 25575
  rconrelay -l 9000 --reassemble mc.internal     Form on :9000
  rconrelay -T admin@bastion mc.internal 25575   Through an SSH gateway
  rconrelay --hash-password                      Hash a web password
`)
}
