// Package config loads the SMTP relay settings from the process environment,
// optionally populated from a local .env file first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	emailsender "github.com/uponusolutions/template-email-sender"
)

// DefaultEnvFile is the dotfile read before the environment.
const DefaultEnvFile = ".env"

// SMTP holds the relay address and login.
// Presence of the values is not validated: a missing host surfaces as a
// connection error when sending.
type SMTP struct {
	Host     string `env:"GMAIL_SMTP_SERVER"`
	Port     string `env:"GMAIL_SMTP_PORT"`
	Login    string `env:"GMAIL_LOGIN_EMAIL"`
	Password string `env:"GMAIL_LOGIN_PASSWORD"`
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %s: %v", emailsender.ErrConfig, path, err)
	}
	return nil
}

// LoadSMTP reads the relay settings from the process environment.
func LoadSMTP() (SMTP, error) {
	var cfg SMTP
	if err := env.Parse(&cfg); err != nil {
		return SMTP{}, fmt.Errorf("%w: %v", emailsender.ErrConfig, err)
	}
	if cfg.Port != "" {
		if _, err := strconv.ParseUint(cfg.Port, 10, 16); err != nil {
			return SMTP{}, fmt.Errorf("%w: GMAIL_SMTP_PORT %q is not a port number", emailsender.ErrConfig, cfg.Port)
		}
	}
	return cfg, nil
}

// Address returns host:port for dialing.
func (c SMTP) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// String includes neither login nor password.
func (c SMTP) String() string {
	return "smtp://" + c.Address()
}

// LogValue implements slog.LogValuer. Login and password are credentials
// and only reported as set or unset.
func (c SMTP) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", c.Host),
		slog.String("port", c.Port),
		slog.Bool("login_set", c.Login != ""),
		slog.Bool("password_set", c.Password != ""),
	)
}
