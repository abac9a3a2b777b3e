package tester

import (
	"io"
	"slices"
	"sync"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

type backend struct {
	cfg   config
	mu    sync.Mutex
	mails []Mail
}

func (b *backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &session{backend: b, conn: c}, nil
}

func (b *backend) store(m Mail) {
	b.mu.Lock()
	b.mails = append(b.mails, m)
	b.mu.Unlock()

	if b.cfg.onMail != nil {
		b.cfg.onMail(m)
	}
}

func (b *backend) all() []Mail {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.mails)
}

func (b *backend) authRequired() bool {
	return b.cfg.username != "" || b.cfg.password != ""
}

// session implements smtp.Session and smtp.AuthSession.
type session struct {
	backend *backend
	conn    *smtp.Conn
	login   string
	from    string
	rcpts   []string
}

func (s *session) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	if mech != sasl.Plain {
		return nil, smtp.ErrAuthUnknownMechanism
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if identity != "" && identity != username {
			return smtp.ErrAuthFailed
		}
		if username != s.backend.cfg.username || password != s.backend.cfg.password {
			return smtp.ErrAuthFailed
		}
		s.login = username
		return nil
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if s.backend.authRequired() && s.login == "" {
		return smtp.ErrAuthRequired
	}
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if s.backend.cfg.rejectTo[to] {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "Mailbox unavailable",
		}
	}
	s.rcpts = append(s.rcpts, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	_, isTLS := s.conn.TLSConnectionState()
	s.backend.store(Mail{
		From:          s.from,
		Rcpts:         slices.Clone(s.rcpts),
		Data:          data,
		Authenticated: s.login,
		TLS:           isTLS,
	})
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.rcpts = nil
}

func (s *session) Logout() error {
	return nil
}
