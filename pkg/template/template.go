package template

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the markup of a template body.
type Format string

const (
	FormatText     Format = "text"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// Template is a stored campaign template.
type Template struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Format  Format `json:"format"`
}

type frontmatter struct {
	Subject string `yaml:"subject"`
	Format  Format `yaml:"format"`
}

// Parse reads a template file: optional YAML frontmatter followed by the body.
// Frontmatter keys are subject and format. Without frontmatter the body is plain text.
func Parse(id string, content []byte) (Template, error) {
	tpl := Template{ID: id, Format: FormatText}

	delimiter := []byte("---")
	if !bytes.HasPrefix(content, delimiter) {
		tpl.Body = string(content)
		return tpl, nil
	}

	rest := bytes.TrimLeft(bytes.TrimPrefix(content, delimiter), "\r\n")
	end := bytes.Index(rest, delimiter)
	if end == -1 {
		return Template{}, fmt.Errorf("%w: closing delimiter not found", ErrInvalidFrontmatter)
	}

	var meta frontmatter
	if len(bytes.TrimSpace(rest[:end])) > 0 {
		if err := yaml.Unmarshal(rest[:end], &meta); err != nil {
			return Template{}, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
		}
	}

	body := rest[end+len(delimiter):]
	body = bytes.TrimPrefix(body, []byte("\r"))
	body = bytes.TrimPrefix(body, []byte("\n"))

	tpl.Subject = strings.TrimSpace(meta.Subject)
	tpl.Body = string(body)
	if meta.Format != "" {
		tpl.Format = meta.Format
	}
	if err := tpl.Validate(); err != nil {
		return Template{}, err
	}
	return tpl, nil
}

// Validate checks the body format.
func (t Template) Validate() error {
	switch t.Format {
	case FormatText, FormatHTML, FormatMarkdown:
		return nil
	case "":
		return fmt.Errorf("%w: empty", ErrUnknownFormat)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, t.Format)
	}
}

// Placeholders returns the names referenced by the subject and body, in first-use order.
func (t Template) Placeholders() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, src := range []string{t.Subject, t.Body} {
		for _, seg := range compile(src) {
			if !seg.placeholder {
				continue
			}
			if _, ok := seen[seg.text]; ok {
				continue
			}
			seen[seg.text] = struct{}{}
			names = append(names, seg.text)
		}
	}
	return names
}
