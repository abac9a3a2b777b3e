// Package mailer submits composed messages to an SMTP relay.
// Every Send opens one session: EHLO, STARTTLS, EHLO, AUTH PLAIN, then
// MAIL FROM, RCPT TO and DATA. The session is always closed before Send
// returns and nothing is retried. SecurityPreferStartTLS adds one short
// session before that to read the EHLO reply.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/uponusolutions/go-sasl"

	emailsender "github.com/uponusolutions/template-email-sender"
)

// Mailer implements a single shot smtp submission client.
type Mailer struct {
	cfg Config
}

// New returns a new mailer.
// When not set via options the address 127.0.0.1:25 is used and STARTTLS is required.
func New(opts ...Option) *Mailer {
	cfg := DefaultConfig()

	for _, o := range opts {
		o(&cfg)
	}

	return NewFromConfig(cfg)
}

// NewFromConfig returns a new mailer from existing config.
func NewFromConfig(cfg Config) *Mailer {
	return &Mailer{cfg: cfg}
}

// ServerAddress returns the configured server address.
func (m *Mailer) ServerAddress() string {
	return m.cfg.serverAddress
}

// Send submits the RFC 5322 message read from in, from address from to the
// recipients rcpt.
//
// Failures are classified as ErrSMTPConnection (dial, greeting, EHLO,
// STARTTLS), ErrSMTPAuth (AUTH) or ErrSMTPSend (MAIL, RCPT, DATA). If the
// relay answered with an error reply it is attached as
// *emailsender.SMTPError.
func (m *Mailer) Send(ctx context.Context, from string, rcpt []string, in io.Reader) (err error) {
	if len(rcpt) < 1 {
		return fmt.Errorf("%w: no recipients", emailsender.ErrSMTPSend)
	}

	c, stop, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer stop()

	defer func() {
		if err != nil {
			_ = c.Close()
			return
		}
		if qerr := c.Quit(); qerr != nil {
			// the message was accepted already
			m.cfg.logger.Warn("smtp quit failed", slog.Any("error", qerr))
			_ = c.Close()
		}
	}()

	if err = m.transmit(c, from, rcpt, in); err != nil {
		return err
	}

	m.cfg.logger.Debug("smtp message accepted", slog.Any("rcpt", rcpt))
	return nil
}

// connect dials the relay, secures the session as configured and
// authenticates when credentials are set.
// If an error occurs, the connection is closed.
func (m *Mailer) connect(ctx context.Context) (*smtp.Client, func() bool, error) {
	addr := m.cfg.serverAddress
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid server address %q: %v", emailsender.ErrSMTPConnection, addr, err)
	}
	if host == "" {
		return nil, nil, fmt.Errorf("%w: no server host configured", emailsender.ErrSMTPConnection)
	}

	security := m.cfg.security
	if security == SecurityPreferStartTLS {
		ok, err := m.offersStartTLS(ctx, addr, host)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			security = SecurityStartTLS
		} else {
			m.cfg.logger.Warn("smtp server doesn't support STARTTLS, continuing in plain text")
			security = SecurityPlain
		}
	}

	conn, err := m.dial(ctx, addr, host, security)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: dial %s: %w", emailsender.ErrSMTPConnection, addr, err)
	}
	// cancelling ctx aborts a hanging session
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})

	m.cfg.logger.Debug("smtp connected", slog.String("addr", addr), slog.String("security", security.String()))

	c, err := m.newClient(conn, host, security)
	if err != nil {
		_ = conn.Close()
		stop()
		return nil, nil, err
	}

	if m.cfg.username != "" {
		if err := m.auth(c); err != nil {
			_ = c.Close()
			stop()
			return nil, nil, err
		}
	}

	return c, stop, nil
}

func (m *Mailer) dial(ctx context.Context, addr, host string, security Security) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: m.cfg.dialTimeout}
	if security == SecurityTLS {
		tlsDialer := tls.Dialer{
			NetDialer: dialer,
			Config:    m.tlsConfig(host),
		}
		return tlsDialer.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

// newClient runs greeting, EHLO and STARTTLS on conn.
//
// With STARTTLS the client says EHLO localhost before upgrading. The
// explicit Hello afterwards is the second EHLO and completes the TLS
// handshake, so certificate errors surface here and not at AUTH.
func (m *Mailer) newClient(conn net.Conn, host string, security Security) (*smtp.Client, error) {
	var c *smtp.Client
	if security == SecurityStartTLS {
		// the greeting is read before CommandTimeout can be set
		timer := time.AfterFunc(m.cfg.commandTimeout, func() {
			_ = conn.Close()
		})
		sc, err := smtp.NewClientStartTLS(conn, m.tlsConfig(host))
		timer.Stop()
		if err != nil {
			return nil, wrapErr(emailsender.ErrSMTPConnection, "starttls", err)
		}
		c = sc
	} else {
		c = smtp.NewClient(conn)
	}
	c.CommandTimeout = m.cfg.commandTimeout
	c.SubmissionTimeout = m.cfg.submissionTimeout

	if err := c.Hello(m.cfg.localName); err != nil {
		_ = c.Close()
		return nil, wrapErr(emailsender.ErrSMTPConnection, "ehlo", err)
	}
	if security == SecurityStartTLS {
		m.cfg.logger.Debug("smtp starttls done")
	}
	return c, nil
}

// offersStartTLS opens a plain session only to read the EHLO reply.
func (m *Mailer) offersStartTLS(ctx context.Context, addr, host string) (bool, error) {
	conn, err := m.dial(ctx, addr, host, SecurityPlain)
	if err != nil {
		return false, fmt.Errorf("%w: dial %s: %w", emailsender.ErrSMTPConnection, addr, err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	c, err := m.newClient(conn, host, SecurityPlain)
	if err != nil {
		_ = conn.Close()
		return false, err
	}

	ok, _ := c.Extension("STARTTLS")
	if err := c.Quit(); err != nil {
		_ = c.Close()
	}
	return ok, nil
}

func (m *Mailer) auth(c *smtp.Client) error {
	if ok, _ := c.Extension("AUTH"); !ok {
		return fmt.Errorf("%w: server doesn't advertise AUTH", emailsender.ErrSMTPAuth)
	}

	if err := c.Auth(sasl.NewPlainClient("", m.cfg.username, m.cfg.password)); err != nil {
		return wrapErr(emailsender.ErrSMTPAuth, "auth", err)
	}
	m.cfg.logger.Debug("smtp authenticated")
	return nil
}

func (m *Mailer) transmit(c *smtp.Client, from string, rcpt []string, in io.Reader) error {
	// MAIL FROM:
	if err := c.Mail(from, nil); err != nil {
		return wrapErr(emailsender.ErrSMTPSend, "mail from", err)
	}

	// RCPT TO:
	for _, addr := range rcpt {
		if err := c.Rcpt(addr, nil); err != nil {
			return wrapErr(emailsender.ErrSMTPSend, "rcpt to "+addr, err)
		}
	}

	// DATA
	w, err := c.Data()
	if err != nil {
		return wrapErr(emailsender.ErrSMTPSend, "data", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		_ = w.Close()
		return wrapErr(emailsender.ErrSMTPSend, "data", err)
	}
	if err := w.Close(); err != nil {
		return wrapErr(emailsender.ErrSMTPSend, "data", err)
	}
	return nil
}

// tlsConfig returns the configured TLS config with ServerName defaulting to host.
func (m *Mailer) tlsConfig(host string) *tls.Config {
	config := m.cfg.tlsConfig
	if config == nil {
		return &tls.Config{
			ServerName: host,
			MinVersion: tls.VersionTLS12,
		}
	}
	if config.ServerName == "" {
		// Make a copy to avoid polluting argument
		config = config.Clone()
		config.ServerName = host
	}
	return config
}

// wrapErr classifies err as kind and converts relay replies to *emailsender.SMTPError.
func wrapErr(kind error, stage string, err error) error {
	var se *smtp.SMTPError
	if errors.As(err, &se) {
		return fmt.Errorf("%w: %s: %w", kind, stage,
			emailsender.NewSMTPError(se.Code, emailsender.EnhancedCode(se.EnhancedCode), se.Message))
	}
	return fmt.Errorf("%w: %s: %w", kind, stage, err)
}
