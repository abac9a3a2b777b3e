// Package render renders plain text email bodies from templates.
//
// A template is UTF-8 text with {{ key }} markers. Each marker is replaced by
// the value bound to key in the variable mapping; whitespace inside the braces
// is ignored and dotted keys ({{ sender.city }}) walk nested mappings.
//
// Rendering is strict by default: a marker whose key is not bound fails with
// ErrUndefinedVariable. WithPermissive renders such markers as empty strings.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/valyala/fasttemplate"
	"github.com/yuin/goldmark"

	emailsender "github.com/uponusolutions/template-email-sender"
)

const (
	defaultStartTag = "{{"
	defaultEndTag   = "}}"
)

// Renderer renders templates against a variable mapping.
type Renderer struct {
	md         goldmark.Markdown
	startTag   string
	endTag     string
	permissive bool
}

// Option configures a Renderer.
type Option func(r *Renderer)

// WithPermissive renders markers of unbound keys as empty strings instead of failing.
func WithPermissive() Option {
	return func(r *Renderer) {
		r.permissive = true
	}
}

// WithDelimiters sets the marker delimiters.
func WithDelimiters(start, end string) Option {
	return func(r *Renderer) {
		r.startTag = start
		r.endTag = end
	}
}

// New returns a strict Renderer using {{ }} markers.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		md:       goldmark.New(),
		startTag: defaultStartTag,
		endTag:   defaultEndTag,
	}

	for _, o := range opts {
		o(r)
	}

	return r
}

// Permissive reports whether unbound keys render as empty strings.
func (r *Renderer) Permissive() bool {
	return r.permissive
}

// RenderFile reads the template at path and renders it against vars.
// A missing file fails with ErrTemplateNotFound.
func (r *Renderer) RenderFile(path string, vars map[string]any) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", emailsender.ErrTemplateNotFound, path)
		}
		return "", fmt.Errorf("read template %s: %w", path, err)
	}
	return r.Render(path, string(content), vars)
}

// Render renders text against vars. name is only used in error messages.
func (r *Renderer) Render(name, text string, vars map[string]any) (string, error) {
	tmpl, err := fasttemplate.NewTemplate(text, r.startTag, r.endTag)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", emailsender.ErrTemplateSyntax, name, err)
	}

	body, err := tmpl.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		key := strings.TrimSpace(tag)
		if key == "" {
			return 0, fmt.Errorf("%w: %s: empty marker %s%s%s", emailsender.ErrTemplateSyntax, name, r.startTag, tag, r.endTag)
		}
		if strings.Contains(key, r.startTag) {
			return 0, fmt.Errorf("%w: %s: nested marker in %q", emailsender.ErrTemplateSyntax, name, key)
		}

		value, ok := Lookup(vars, key)
		if !ok {
			if r.permissive {
				return 0, nil
			}
			return 0, fmt.Errorf("%w: %q in %s", emailsender.ErrUndefinedVariable, key, name)
		}
		return io.WriteString(w, Format(value))
	})
	if err != nil {
		return "", err
	}

	return body, nil
}

// RenderHTML converts a rendered Markdown body into HTML.
func (r *Renderer) RenderHTML(body string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}
