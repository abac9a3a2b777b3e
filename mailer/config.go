package mailer

import (
	"crypto/tls"
	"io"
	"log/slog"
	"time"
)

// DefaultConfig returns the default configuration of a mailer.
func DefaultConfig() Config {
	return Config{
		serverAddress: "127.0.0.1:25",
		security:      SecurityStartTLS,
		localName:     "localhost",
		// 30 seconds, very generous
		dialTimeout: 30 * time.Second,
		// As recommended by RFC 5321.
		commandTimeout: 5 * time.Minute,
		// 10 minutes + 2 minute buffer in case the server is doing transparent
		// forwarding and also follows recommended timeouts.
		submissionTimeout: 12 * time.Minute,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Security describes how the connection is etablished.
type Security int32

const (
	// SecurityStartTLS always does starttls.
	SecurityStartTLS Security = 0
	// SecurityPreferStartTLS reads the EHLO reply of a first session and
	// reconnects with STARTTLS when it is offered, else stays plain.
	SecurityPreferStartTLS Security = 1
	// SecurityPlain is always just a plain connection.
	SecurityPlain Security = 2
	// SecurityTLS does a implicit tls connection.
	SecurityTLS Security = 3
)

// String returns the name of the security mode.
func (s Security) String() string {
	switch s {
	case SecurityStartTLS:
		return "starttls"
	case SecurityPreferStartTLS:
		return "prefer-starttls"
	case SecurityPlain:
		return "plain"
	case SecurityTLS:
		return "tls"
	default:
		return "unknown"
	}
}

// Config contains everything needed to open one submission session.
type Config struct {
	serverAddress string // Format address:port.
	localName     string // the name to use in EHLO
	username      string
	password      string
	security      Security // Defines the connection is secured
	tlsConfig     *tls.Config

	// Time to wait for dial to succeed.
	dialTimeout time.Duration

	// Time to wait for command responses (this includes 3xx reply to DATA).
	commandTimeout time.Duration

	// Time to wait for responses after final dot.
	submissionTimeout time.Duration

	logger *slog.Logger
}

// Option defines a mailer option.
type Option func(c *Config)

// WithServerAddress sets the SMTP server address (host:port).
func WithServerAddress(addr string) Option {
	return func(c *Config) {
		c.serverAddress = addr
	}
}

// WithCredentials sets the AUTH PLAIN login. An empty username disables
// authentication.
func WithCredentials(username, password string) Option {
	return func(c *Config) {
		c.username = username
		c.password = password
	}
}

// WithSecurity sets how the connection is secured.
func WithSecurity(security Security) Option {
	return func(c *Config) {
		c.security = security
	}
}

// WithTLSConfig sets the TLS config used for STARTTLS and implicit TLS.
// An empty ServerName is filled with the host of the server address.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Config) {
		c.tlsConfig = cfg
	}
}

// WithLocalName sets the EHLO local name.
func WithLocalName(localName string) Option {
	return func(c *Config) {
		c.localName = localName
	}
}

// WithDialTimeout sets the dial timeout.
func WithDialTimeout(dialTimeout time.Duration) Option {
	return func(c *Config) {
		c.dialTimeout = dialTimeout
	}
}

// WithCommandTimeout sets the command timeout.
func WithCommandTimeout(commandTimeout time.Duration) Option {
	return func(c *Config) {
		c.commandTimeout = commandTimeout
	}
}

// WithSubmissionTimeout sets the submission timeout.
func WithSubmissionTimeout(submissionTimeout time.Duration) Option {
	return func(c *Config) {
		c.submissionTimeout = submissionTimeout
	}
}

// WithLogger sets the logger for session progress. Neither login nor
// password is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	}
}
