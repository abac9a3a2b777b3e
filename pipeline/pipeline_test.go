package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emailsender "github.com/uponusolutions/template-email-sender"
	"github.com/uponusolutions/template-email-sender/config"
	"github.com/uponusolutions/template-email-sender/input"
	"github.com/uponusolutions/template-email-sender/logging"
	"github.com/uponusolutions/template-email-sender/mailer"
	"github.com/uponusolutions/template-email-sender/render"
	"github.com/uponusolutions/template-email-sender/tester"
)

const (
	login    = "sender@example.com"
	password = "s3cret-app-password"
)

type recordingSender struct {
	calls int
	from  string
	rcpt  []string
	data  []byte
}

func (s *recordingSender) Send(_ context.Context, from string, rcpt []string, in io.Reader) error {
	s.calls++
	s.from = from
	s.rcpt = rcpt
	data, err := io.ReadAll(in)
	s.data = data
	return err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// fixture writes the welcome template and its data file into a temp dir.
func fixture(t *testing.T) input.Args {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "hello.txt", "Hello {{recipient_first_name}}, your subject is {{subject}}")
	data := writeFile(t, dir, "data.yaml", "template_file: hello.txt\nsubject: FromYaml\n")

	return input.Args{
		Data:               data,
		RecipientEmail:     "ada@example.com",
		RecipientFirstName: "Ada",
		RecipientLastName:  "Lovelace",
		Subject:            "Welcome",
	}
}

func smtpConfig() config.SMTP {
	return config.SMTP{Host: "127.0.0.1", Port: "587", Login: login, Password: password}
}

func TestRun(t *testing.T) {
	args := fixture(t)
	sender := &recordingSender{}

	require.NoError(t, Run(context.Background(), Deps{SMTP: smtpConfig(), Sender: sender}, args))

	require.Equal(t, 1, sender.calls)
	assert.Equal(t, login, sender.from)
	assert.Equal(t, []string{"ada@example.com"}, sender.rcpt)

	raw := string(sender.data)
	assert.Contains(t, raw, "Hello Ada, your subject is Welcome")
	assert.Contains(t, raw, "Subject: Welcome")
	assert.Contains(t, raw, "<ada@example.com>")
	assert.Contains(t, raw, "text/plain")
}

func TestRun_NestedData(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "office.txt", "City: {{ sender.city }}, floor {{ sender.office.floor }}")
	args := fixture(t)
	args.Data = writeFile(t, dir, "data.yaml", "template_file: office.txt\nsender:\n  city: London\n  office:\n    floor: 3\n")
	sender := &recordingSender{}

	require.NoError(t, Run(context.Background(), Deps{SMTP: smtpConfig(), Sender: sender}, args))
	assert.Contains(t, string(sender.data), "City: London, floor 3")
}

func TestRun_DataFileMissing(t *testing.T) {
	args := fixture(t)
	args.Data = filepath.Join(t.TempDir(), "missing.yaml")
	sender := &recordingSender{}

	err := Run(context.Background(), Deps{SMTP: smtpConfig(), Sender: sender}, args)
	require.ErrorIs(t, err, emailsender.ErrDataFileNotFound)
	assert.Zero(t, sender.calls)
}

func TestRun_MissingArgument(t *testing.T) {
	args := fixture(t)
	args.Subject = ""
	sender := &recordingSender{}

	err := Run(context.Background(), Deps{SMTP: smtpConfig(), Sender: sender}, args)
	require.ErrorIs(t, err, emailsender.ErrMissingArgument)
	assert.ErrorContains(t, err, "-subject")
	assert.Zero(t, sender.calls)
}

func TestRun_UndefinedVariable(t *testing.T) {
	args := fixture(t)
	args.Template = writeFile(t, t.TempDir(), "typo.txt", "Hi {{recipient_frist_name}}")
	sender := &recordingSender{}

	err := Run(context.Background(), Deps{SMTP: smtpConfig(), Sender: sender}, args)
	require.ErrorIs(t, err, emailsender.ErrUndefinedVariable)
	assert.Zero(t, sender.calls)

	// permissive rendering drops the marker
	err = Run(context.Background(), Deps{SMTP: smtpConfig(), Sender: sender, Renderer: render.New(render.WithPermissive())}, args)
	require.NoError(t, err)
	assert.Equal(t, 1, sender.calls)
}

func TestRun_AttachmentMissing(t *testing.T) {
	args := fixture(t)
	args.Attachment = filepath.Join(t.TempDir(), "report.pdf")
	sender := &recordingSender{}

	err := Run(context.Background(), Deps{SMTP: smtpConfig(), Sender: sender}, args)
	require.ErrorIs(t, err, emailsender.ErrAttachmentNotFound)
	assert.Zero(t, sender.calls)
}

func TestRun_AttachmentAndMarkdown(t *testing.T) {
	args := fixture(t)
	args.Attachment = writeFile(t, t.TempDir(), "report.pdf", "%PDF-1.4 fake")
	sender := &recordingSender{}

	err := Run(context.Background(), Deps{SMTP: smtpConfig(), Sender: sender, Markdown: true}, args)
	require.NoError(t, err)

	raw := string(sender.data)
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, "application/pdf")
	assert.Contains(t, raw, "report.pdf")
}

func TestRun_DryRun(t *testing.T) {
	args := fixture(t)
	sender := &recordingSender{}
	var out bytes.Buffer

	err := Run(context.Background(), Deps{SMTP: smtpConfig(), Sender: sender, DryRun: &out}, args)
	require.NoError(t, err)
	assert.Zero(t, sender.calls)
	assert.Contains(t, out.String(), "Hello Ada, your subject is Welcome")
}

func TestRun_InvalidLogin(t *testing.T) {
	args := fixture(t)
	cfg := smtpConfig()
	cfg.Login = ""
	sender := &recordingSender{}

	err := Run(context.Background(), Deps{SMTP: cfg, Sender: sender}, args)
	require.ErrorIs(t, err, emailsender.ErrInvalidAddress)
	assert.Zero(t, sender.calls)
}

func newRelay(t *testing.T) *tester.Server {
	t.Helper()
	relay, err := tester.New(tester.WithCredentials(login, password))
	require.NoError(t, err)
	require.NoError(t, relay.Start())
	t.Cleanup(func() {
		assert.NoError(t, relay.Close())
	})
	return relay
}

func relayMailer(relay *tester.Server, pass string, opts ...mailer.Option) *mailer.Mailer {
	base := []mailer.Option{
		mailer.WithServerAddress(relay.Addr()),
		mailer.WithCredentials(login, pass),
		mailer.WithTLSConfig(relay.ClientTLSConfig()),
		mailer.WithDialTimeout(5 * time.Second),
		mailer.WithCommandTimeout(5 * time.Second),
	}
	return mailer.New(append(base, opts...)...)
}

func TestRun_Relay(t *testing.T) {
	relay := newRelay(t)
	args := fixture(t)

	err := Run(context.Background(), Deps{SMTP: smtpConfig(), Sender: relayMailer(relay, password)}, args)
	require.NoError(t, err)

	m, found := relay.Load(login, []string{"ada@example.com"})
	require.True(t, found)
	assert.True(t, m.TLS)
	assert.Equal(t, login, m.Authenticated)
	assert.Contains(t, string(m.Data), "Hello Ada, your subject is Welcome")
}

func TestRun_RelayRejectsCredentials(t *testing.T) {
	relay := newRelay(t)
	args := fixture(t)

	var logs bytes.Buffer
	logger := logging.New(&logs, slog.LevelDebug)

	cfg := smtpConfig()
	cfg.Password = "wrong-password"
	err := Run(context.Background(), Deps{
		SMTP:   cfg,
		Sender: relayMailer(relay, cfg.Password, mailer.WithLogger(logger)),
		Logger: logger,
	}, args)
	require.ErrorIs(t, err, emailsender.ErrSMTPAuth)

	assert.Empty(t, relay.Mails())
	assert.NotContains(t, logs.String(), "wrong-password")
	assert.NotContains(t, logs.String(), login)
	assert.Contains(t, logs.String(), "smtp.login_set=true")
}
