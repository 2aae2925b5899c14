// Package web is the relay's control surface: a small HTML form that
// checks the operator password and forwards one console command at a
// time to the persistent client.
package web

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/google/uuid"

	rcerr "rconrelay/internal/errors"
	"rconrelay/internal/metrics"
	"rconrelay/util"
)

// Commander is the part of the console client the form needs.
// ExecuteAsync must call onDone exactly once, and only after the client
// is free to take the next command.
type Commander interface {
	IsReady() bool
	ExecuteAsync(command string, onDone func(response string, err error))
}

// Config configures a [Server].
type Config struct {
	// Password is compared in constant time.  PasswordHash, a bcrypt
	// hash, takes precedence when set.
	Password     string
	PasswordHash string

	// MaxCommandLength caps the accepted command (default 1024 bytes).
	MaxCommandLength int
	// RequestTimeout bounds how long one request may wait for its turn
	// and its answer (default 15s).  Keep it above the client's command
	// timeout, or a queued request gives up before the slot frees.
	RequestTimeout time.Duration

	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Server serves the form plus /healthz and /metrics.
type Server struct {
	cfg    Config
	cmd    Commander
	check  *PasswordCheck
	logger *util.Logger
	tmpl   *template.Template

	// turn admits one command at a time; the client rejects overlap.
	// It is held until the client resolves the command, not until the
	// request that sent it returns.
	turn chan struct{}
}

// New builds a server around cmd.
func New(cfg Config, cmd Commander) (*Server, error) {
	if cfg.MaxCommandLength <= 0 {
		cfg.MaxCommandLength = 1024
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = util.NewLogger(0)
	}
	check, err := NewPasswordCheck(cfg.Password, cfg.PasswordHash)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:    cfg,
		cmd:    cmd,
		check:  check,
		logger: logger,
		tmpl:   template.Must(template.New("form").Parse(formHTML)),
		turn:   make(chan struct{}, 1),
	}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleForm)
	mux.HandleFunc("POST /{$}", s.handleCommand)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	return mux
}

// page is the form template's data.
type page struct {
	Ready    bool
	Command  string
	Response string
	Error    string
}

func (s *Server) render(w http.ResponseWriter, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.Execute(w, p); err != nil {
		s.logger.Error("render: %v", err)
	}
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, page{Ready: s.cmd.IsReady()})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	w.Header().Set("X-Request-Id", id)
	log := s.logger.Named("req " + id[:8])

	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, page{Ready: s.cmd.IsReady(), Error: "malformed form"})
		return
	}
	command, err := CleanCommand(r.PostFormValue("command"), s.cfg.MaxCommandLength)
	if err != nil {
		log.Verbose("rejected input from %s: %v", r.RemoteAddr, err)
		s.render(w, http.StatusBadRequest, page{Ready: s.cmd.IsReady(), Error: err.Error()})
		return
	}
	p := page{Ready: s.cmd.IsReady(), Command: command}

	if !s.check.Verify(r.PostFormValue("password")) {
		log.Warn("bad password from %s", r.RemoteAddr)
		p.Error = "wrong password"
		s.render(w, http.StatusUnauthorized, p)
		return
	}
	if !p.Ready {
		p.Error = "console is not connected, try again shortly"
		s.render(w, http.StatusServiceUnavailable, p)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		p.Error = "relay is busy, try again"
		s.render(w, http.StatusServiceUnavailable, p)
		return
	}

	log.Info("exec %q from %s", command, r.RemoteAddr)
	start := time.Now()
	type result struct {
		resp string
		err  error
	}
	done := make(chan result, 1)
	s.cmd.ExecuteAsync(command, func(resp string, err error) {
		<-s.turn
		done <- result{resp, err}
	})

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		// The command keeps its turn until the client gives up on it.
		res.err = ctx.Err()
	}
	resp, err := res.resp, res.err
	if err != nil {
		status := statusFor(err)
		log.Warn("exec %q failed after %v: %v", command, time.Since(start), err)
		p.Error = err.Error()
		p.Ready = s.cmd.IsReady()
		s.render(w, status, p)
		return
	}
	log.Verbose("exec %q answered in %v (%d bytes)", command, time.Since(start), len(resp))
	p.Response = resp
	s.render(w, http.StatusOK, p)
}

// statusFor maps a client error onto an HTTP status.
func statusFor(err error) int {
	switch rcerr.KindOf(err) {
	case rcerr.NotReady:
		return http.StatusServiceUnavailable
	case rcerr.Timeout:
		return http.StatusGatewayTimeout
	case rcerr.TransportLost:
		return http.StatusBadGateway
	}
	if rcerr.Is(err, context.DeadlineExceeded) || rcerr.Is(err, context.Canceled) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadRequest
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !s.cmd.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready\n")) //nolint:errcheck
		return
	}
	w.Write([]byte("ok\n")) //nolint:errcheck
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(s.cfg.Metrics.JSON())) //nolint:errcheck
}

const formHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>RCON relay</title>
</head>
<body>
<h1>RCON relay</h1>
<p>Console: {{if .Ready}}connected{{else}}disconnected{{end}}</p>
<form method="post" action="/">
<p><label>Password <input type="password" name="password" autocomplete="current-password"></label></p>
<p><label>Command <input type="text" name="command" value="{{.Command}}" size="60" autofocus></label></p>
<p><button type="submit">Send</button></p>
</form>
{{if .Error}}<p class="error"><strong>Error:</strong> {{.Error}}</p>{{end}}
{{if .Response}}<h2>Response</h2>
<pre>{{.Response}}</pre>{{end}}
</body>
</html>
`
