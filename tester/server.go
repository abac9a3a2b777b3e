// Package tester provides an in-process SMTP relay for tests and local runs.
//
// The relay speaks STARTTLS with a self signed certificate, accepts AUTH
// PLAIN for one configured login and stores every accepted message so it can
// be looked up afterwards.
package tester

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"slices"
	"time"

	"github.com/emersion/go-smtp"
)

// Mail is a message accepted by the relay.
type Mail struct {
	From  string
	Rcpts []string
	Data  []byte
	// Authenticated is the login the message was submitted with, if any.
	Authenticated string
	// TLS reports whether the session was encrypted.
	TLS bool
}

// Server is an SMTP relay listening on a local address.
type Server struct {
	smtp     *smtp.Server
	backend  *backend
	cert     tls.Certificate
	listener net.Listener
	addr     string
	logger   *slog.Logger
}

type config struct {
	addr      string
	domain    string
	username  string
	password  string
	noTLS     bool
	rejectTo  map[string]bool
	onMail    func(Mail)
	logger    *slog.Logger
	debug     io.Writer
	insecure  bool
	certHosts []string
}

// Option configures a Server.
type Option func(c *config)

// WithAddr sets the listen address, 127.0.0.1:0 by default.
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithCredentials requires AUTH PLAIN with username and password before MAIL.
func WithCredentials(username, password string) Option {
	return func(c *config) {
		c.username = username
		c.password = password
	}
}

// WithoutTLS disables STARTTLS and allows AUTH over plain connections.
func WithoutTLS() Option {
	return func(c *config) {
		c.noTLS = true
		c.insecure = true
	}
}

// WithInsecureAuth allows AUTH before STARTTLS.
func WithInsecureAuth() Option {
	return func(c *config) {
		c.insecure = true
	}
}

// WithRejectRecipient makes RCPT TO fail with 550 for addr.
func WithRejectRecipient(addr string) Option {
	return func(c *config) {
		c.rejectTo[addr] = true
	}
}

// WithOnMail calls fn for every accepted message.
func WithOnMail(fn func(Mail)) Option {
	return func(c *config) {
		c.onMail = fn
	}
}

// WithLogger sets the logger for session errors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithDebug writes the raw protocol exchange to w.
func WithDebug(w io.Writer) Option {
	return func(c *config) {
		c.debug = w
	}
}

// New creates a relay. It does not listen until Start is called.
func New(opts ...Option) (*Server, error) {
	cfg := config{
		addr:      "127.0.0.1:0",
		domain:    "localhost",
		rejectTo:  map[string]bool{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		certHosts: []string{"localhost", "127.0.0.1"},
	}
	for _, o := range opts {
		o(&cfg)
	}

	be := &backend{cfg: cfg}

	s := smtp.NewServer(be)
	s.Addr = cfg.addr
	s.Domain = cfg.domain
	s.ReadTimeout = 10 * time.Second
	s.WriteTimeout = 10 * time.Second
	s.MaxMessageBytes = 10 << 20
	s.MaxRecipients = 50
	s.AllowInsecureAuth = cfg.insecure
	s.Debug = cfg.debug

	srv := &Server{smtp: s, backend: be, logger: cfg.logger}

	if !cfg.noTLS {
		cert, err := GenX509KeyPair(cfg.certHosts...)
		if err != nil {
			return nil, err
		}
		srv.cert = cert
		s.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	return srv, nil
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.smtp.Addr)
	if err != nil {
		return err
	}
	s.listener = l
	s.addr = l.Addr().String()

	go func() {
		if err := s.smtp.Serve(l); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			s.logger.Error("smtp relay stopped", slog.Any("error", err))
		}
	}()

	return nil
}

// Serve listens and blocks until ctx is done or the relay fails.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Close()
}

// Addr returns the address the relay listens on.
func (s *Server) Addr() string {
	return s.addr
}

// Host returns the host part of Addr.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.addr)
	return host
}

// Port returns the port part of Addr.
func (s *Server) Port() string {
	_, port, _ := net.SplitHostPort(s.addr)
	return port
}

// ClientTLSConfig returns a client config trusting the relay certificate.
func (s *Server) ClientTLSConfig() *tls.Config {
	return ClientTLSConfig(s.cert)
}

// Close stops the relay.
func (s *Server) Close() error {
	return s.smtp.Close()
}

// Mails returns a copy of all accepted messages.
func (s *Server) Mails() []Mail {
	return s.backend.all()
}

// Load returns the first accepted message sent from from to exactly rcpts.
func (s *Server) Load(from string, rcpts []string) (Mail, bool) {
	for _, m := range s.backend.all() {
		if m.From == from && slices.Equal(m.Rcpts, rcpts) {
			return m, true
		}
	}
	return Mail{}, false
}

// Reset drops all stored messages.
func (s *Server) Reset() {
	s.backend.mu.Lock()
	s.backend.mails = nil
	s.backend.mu.Unlock()
}
