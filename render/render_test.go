package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emailsender "github.com/uponusolutions/template-email-sender"
)

func TestRender(t *testing.T) {
	r := New()

	body, err := r.Render("welcome", "Hello {{recipient_first_name}}, your subject is {{subject}}", map[string]any{
		"recipient_first_name": "Ada",
		"subject":              "Welcome",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada, your subject is Welcome", body)
}

func TestRender_Values(t *testing.T) {
	r := New()
	vars := map[string]any{
		"name":   "Ada",
		"count":  3,
		"ratio":  1.5,
		"active": true,
		"empty":  nil,
		"sender": map[string]any{"city": "London"},
	}

	body, err := r.Render("values", "{{ name }}|{{count}}|{{ratio}}|{{active}}|{{empty}}|{{ sender.city }}", vars)
	require.NoError(t, err)
	assert.Equal(t, "Ada|3|1.5|true||London", body)
}

func TestRender_NoMarkers(t *testing.T) {
	body, err := New().Render("plain", "Nothing to see here.\n", nil)
	require.NoError(t, err)
	assert.Equal(t, "Nothing to see here.\n", body)
}

func TestRender_ValuesAreVerbatim(t *testing.T) {
	body, err := New().Render("raw", "{{v}}", map[string]any{"v": "<b>Tom & Jerry</b> {{subject}}"})
	require.NoError(t, err)
	assert.Equal(t, "<b>Tom & Jerry</b> {{subject}}", body)
}

func TestRender_Strict(t *testing.T) {
	_, err := New().Render("typo", "Hello {{recipient_frist_name}}", map[string]any{"recipient_first_name": "Ada"})
	require.ErrorIs(t, err, emailsender.ErrUndefinedVariable)
	assert.ErrorContains(t, err, "recipient_frist_name")
}

func TestRender_Permissive(t *testing.T) {
	r := New(WithPermissive())
	require.True(t, r.Permissive())

	body, err := r.Render("typo", "Hello {{recipient_frist_name}}!", map[string]any{"recipient_first_name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello !", body)
}

func TestRender_SyntaxErrors(t *testing.T) {
	tests := map[string]string{
		"unterminated": "Hello {{recipient_first_name",
		"empty marker": "Hello {{  }}",
		"nested":       "Hello {{ {{name}} }}",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(WithPermissive()).Render(name, text, map[string]any{"name": "Ada"})
			require.ErrorIs(t, err, emailsender.ErrTemplateSyntax)
		})
	}
}

func TestRender_Delimiters(t *testing.T) {
	body, err := New(WithDelimiters("[[", "]]")).Render("custom", "Hi [[name]] {{name}}", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada {{name}}", body)
}

func TestRenderFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "welcome.txt")
	require.NoError(t, os.WriteFile(path, []byte("Dear {{ recipient_first_name }} {{ recipient_last_name }},\n"), 0o600))

	body, err := New().RenderFile(path, map[string]any{
		"recipient_first_name": "Ada",
		"recipient_last_name":  "Lovelace",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dear Ada Lovelace,\n", body)
}

func TestRenderFile_NotFound(t *testing.T) {
	_, err := New().RenderFile(filepath.Join(t.TempDir(), "missing.txt"), nil)
	require.ErrorIs(t, err, emailsender.ErrTemplateNotFound)
	assert.NotErrorIs(t, err, os.ErrNotExist)
}

func TestRenderHTML(t *testing.T) {
	html, err := New().RenderHTML("# Welcome\n\nHello **Ada**")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Welcome</h1>")
	assert.Contains(t, html, "<strong>Ada</strong>")
}

func TestLookup(t *testing.T) {
	vars := map[string]any{
		"a.b":  "exact",
		"a":    map[string]any{"b": "nested", "c": map[any]any{"d": 4}},
		"leaf": "x",
	}

	v, ok := Lookup(vars, "a.b")
	require.True(t, ok)
	assert.Equal(t, "exact", v)

	v, ok = Lookup(vars, "a.c.d")
	require.True(t, ok)
	assert.Equal(t, 4, v)

	_, ok = Lookup(vars, "leaf.x")
	assert.False(t, ok)

	_, ok = Lookup(vars, "missing")
	assert.False(t, ok)
}

type namedVars map[string]any

func TestLookup_NamedMapTypes(t *testing.T) {
	vars := map[string]any{
		"sender": namedVars{"city": "London", "office": namedVars{"floor": 3}},
		"ids":    map[int]any{1: "one"},
	}

	v, ok := Lookup(vars, "sender.city")
	require.True(t, ok)
	assert.Equal(t, "London", v)

	v, ok = Lookup(vars, "sender.office.floor")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = Lookup(vars, "sender.country")
	assert.False(t, ok)

	_, ok = Lookup(vars, "ids.1")
	assert.False(t, ok)

	body, err := New().Render("named", "{{ sender.city }}", vars)
	require.NoError(t, err)
	assert.Equal(t, "London", body)
}
