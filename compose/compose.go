// Package compose builds the MIME message delivered by send_email: From, To
// and Subject headers, one plain text part, an optional HTML alternative and
// at most one attachment.
package compose

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wneessen/go-mail"

	emailsender "github.com/uponusolutions/template-email-sender"
)

// AttachmentType is the content type every attachment is tagged with.
const AttachmentType = mail.ContentType("application/pdf")

var headerReplacer = strings.NewReplacer("\r", "", "\n", " ")

// Message is a composed email. It is built once and consumed once.
type Message struct {
	msg  *mail.Msg
	from string
	to   string
}

type options struct {
	attachment string
	html       string
}

// Option configures New.
type Option func(o *options)

// WithAttachment attaches the file at path, named after its base name.
func WithAttachment(path string) Option {
	return func(o *options) {
		o.attachment = path
	}
}

// WithHTML adds html as a text/html alternative of the body.
func WithHTML(html string) Option {
	return func(o *options) {
		o.html = html
	}
}

// New composes a message. A missing attachment fails with
// ErrAttachmentNotFound and no message is returned.
func New(from, to, subject, body string, opts ...Option) (*Message, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// Read the attachment first so a missing file leaves nothing half built.
	var attachment []byte
	if o.attachment != "" {
		content, err := os.ReadFile(o.attachment)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", emailsender.ErrAttachmentNotFound, o.attachment)
			}
			return nil, fmt.Errorf("read attachment %s: %w", o.attachment, err)
		}
		attachment = content
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("%w: from %q: %v", emailsender.ErrInvalidAddress, from, err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("%w: to %q: %v", emailsender.ErrInvalidAddress, to, err)
	}
	m.Subject(headerReplacer.Replace(subject))
	m.SetBodyString(mail.TypeTextPlain, body)
	if o.html != "" {
		m.AddAlternativeString(mail.TypeTextHTML, o.html)
	}

	if attachment != nil {
		name := filepath.Base(o.attachment)
		if err := m.AttachReader(name, bytes.NewReader(attachment), mail.WithFileContentType(AttachmentType)); err != nil {
			return nil, fmt.Errorf("attach %s: %w", name, err)
		}
	}

	return &Message{msg: m, from: from, to: to}, nil
}

// From returns the envelope sender.
func (m *Message) From() string {
	return m.from
}

// To returns the envelope recipients.
func (m *Message) To() []string {
	return []string{m.to}
}

// PartCount returns the number of MIME parts: body parts plus attachments.
func (m *Message) PartCount() int {
	return len(m.msg.GetParts()) + len(m.msg.GetAttachments())
}

// ContentTypes returns the content type of each body part.
func (m *Message) ContentTypes() []string {
	parts := m.msg.GetParts()
	types := make([]string, 0, len(parts))
	for _, p := range parts {
		types = append(types, string(p.GetContentType()))
	}
	return types
}

// Attachment describes an attached file.
type Attachment struct {
	Name        string
	ContentType string
}

// Attachments returns the attached files.
func (m *Message) Attachments() []Attachment {
	files := m.msg.GetAttachments()
	out := make([]Attachment, 0, len(files))
	for _, f := range files {
		out = append(out, Attachment{Name: f.Name, ContentType: string(f.ContentType)})
	}
	return out
}

// WriteTo writes the serialized message to w.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	return m.msg.WriteTo(w)
}

// Bytes returns the serialized message.
func (m *Message) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := m.msg.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize message: %w", err)
	}
	return buf.Bytes(), nil
}
