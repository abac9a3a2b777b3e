// Package input loads everything a send_email invocation needs before
// rendering: the command line arguments, the YAML data file, the template
// reference and the merged variable mapping.
package input

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	emailsender "github.com/uponusolutions/template-email-sender"
)

// TemplateFileKey names the data file key holding the template path.
const TemplateFileKey = "template_file"

// Keys of the variables derived from the command line and the environment.
const (
	KeyRecipientFirstName = "recipient_first_name"
	KeyRecipientLastName  = "recipient_last_name"
	KeyRecipientEmail     = "recipient_email"
	KeySubject            = "subject"
	KeyFromEmail          = "from_email"
)

// Vars is a variable mapping available to templates.
type Vars map[string]any

// Args are the command line inputs of one invocation.
type Args struct {
	Template           string // optional, falls back to template_file
	Data               string
	RecipientEmail     string
	RecipientFirstName string
	RecipientLastName  string
	Subject            string
	Attachment         string // optional
}

// Validate reports the first required argument that is empty.
func (a Args) Validate() error {
	required := []struct {
		flag  string
		value string
	}{
		{"data", a.Data},
		{"recipient_email", a.RecipientEmail},
		{"recipient_first_name", a.RecipientFirstName},
		{"recipient_last_name", a.RecipientLastName},
		{"subject", a.Subject},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: -%s", emailsender.ErrMissingArgument, r.flag)
		}
	}
	return nil
}

// Vars returns the variables supplied on the command line.
func (a Args) Vars() Vars {
	return Vars{
		KeyRecipientFirstName: a.RecipientFirstName,
		KeyRecipientLastName:  a.RecipientLastName,
		KeyRecipientEmail:     a.RecipientEmail,
		KeySubject:            a.Subject,
	}
}

// Inputs is the loaded, ready to render state of one invocation.
type Inputs struct {
	Args         Args
	TemplatePath string
	Data         Vars // as read from the data file
	Vars         Vars // merged mapping passed to the renderer
}

// Load validates args, reads the data file, resolves the template and
// merges the variables. fromEmail becomes the derived from_email variable.
func Load(args Args, fromEmail string) (*Inputs, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}

	data, err := LoadData(args.Data)
	if err != nil {
		return nil, err
	}

	templatePath, err := ResolveTemplate(args.Template, data, args.Data)
	if err != nil {
		return nil, err
	}

	return &Inputs{
		Args:         args,
		TemplatePath: templatePath,
		Data:         data,
		Vars:         MergeVars(data, args.Vars(), Vars{KeyFromEmail: fromEmail}),
	}, nil
}

// LoadData reads path as UTF-8 YAML. The document must be a mapping; an
// empty document yields an empty mapping.
func LoadData(path string) (Vars, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", emailsender.ErrDataFileNotFound, path)
		}
		return nil, fmt.Errorf("read data file %s: %w", path, err)
	}

	// Decode into a plain map so nested mappings stay map[string]any
	// instead of taking the named Vars type.
	var data map[string]any
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", emailsender.ErrDataParse, path, err)
	}
	if data == nil {
		return Vars{}, nil
	}
	return Vars(data), nil
}

// ResolveTemplate returns explicit when set, otherwise the template_file
// entry of data. A relative template_file that does not exist relative to
// the working directory is looked up next to the data file.
func ResolveTemplate(explicit string, data Vars, dataPath string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	raw, ok := data[TemplateFileKey]
	if !ok || raw == nil {
		return "", emailsender.ErrTemplateUnspecified
	}
	path, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", emailsender.ErrDataParse, TemplateFileKey, raw)
	}
	if path == "" {
		return "", emailsender.ErrTemplateUnspecified
	}

	if !filepath.IsAbs(path) && dataPath != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			sibling := filepath.Join(filepath.Dir(dataPath), path)
			if _, err := os.Stat(sibling); err == nil {
				return sibling, nil
			}
		}
	}
	return path, nil
}

// MergeVars merges sources into a new mapping. Sources are applied in
// order, so a key in a later source replaces the same key of an earlier one.
func MergeVars(sources ...Vars) Vars {
	size := 0
	for _, s := range sources {
		size += len(s)
	}
	merged := make(Vars, size)
	for _, s := range sources {
		for k, v := range s {
			merged[k] = v
		}
	}
	return merged
}
