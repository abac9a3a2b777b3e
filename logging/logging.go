// Package logging sets up the run log of a send_email invocation.
//
// The log is a text file recreated on every run holding time, level and
// message of each record. Attributes whose key looks like a secret are
// masked before they are written.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// DefaultFile is the run log written to the working directory.
const DefaultFile = "template-email-sender.log"

const redacted = "[REDACTED]"

var secretKeys = []string{"password", "passwd", "secret", "token"}

// Open truncates or creates path and returns a debug level logger writing
// to it together with the function closing the file.
func Open(path string) (*slog.Logger, func() error, error) {
	if path == "" {
		path = DefaultFile
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	return New(f, slog.LevelDebug), f.Close, nil
}

// New returns a text logger writing to w at level with secrets masked.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	}))
}

// Discard returns a logger dropping all records.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if IsSecretKey(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}

// IsSecretKey reports whether an attribute named key must not be logged.
func IsSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
