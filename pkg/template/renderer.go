package template

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Message is a rendered email.
type Message struct {
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text"`
}

// DefaultCacheSize is the number of compiled subjects and bodies a Renderer keeps.
const DefaultCacheSize = 256

// Renderer turns a template and recipient data into a Message.
// Compiled subjects and bodies are kept in a bounded LRU cache; a Renderer is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	ugc    *bluemonday.Policy
	strict *bluemonday.Policy
	cache  *lru.Cache[string, []segment]
}

// RendererOption configures a Renderer.
type RendererOption func(*rendererConfig)

type rendererConfig struct {
	cacheSize int
}

// WithCacheSize sets how many compiled subjects and bodies are kept.
// Values below one fall back to DefaultCacheSize.
func WithCacheSize(n int) RendererOption {
	return func(c *rendererConfig) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// NewRenderer creates a renderer with GitHub-flavored markdown and a UGC sanitization policy.
func NewRenderer(opts ...RendererOption) *Renderer {
	cfg := rendererConfig{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, []segment](cfg.cacheSize)

	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		ugc:    bluemonday.UGCPolicy(),
		strict: bluemonday.StrictPolicy(),
		cache:  cache,
	}
}

// Render substitutes placeholders and converts the body to HTML and plain text.
// The first unresolved placeholder, in subject-then-body order, is returned as *MissingVariableError.
func (r *Renderer) Render(t Template, data Data) (Message, error) {
	if err := t.Validate(); err != nil {
		return Message{}, err
	}

	subject, err := r.substitute(t.Subject, data, nil)
	if err != nil {
		return Message{}, err
	}
	subject = strings.Join(strings.Fields(subject), " ")

	switch t.Format {
	case FormatHTML:
		body, err := r.substitute(t.Body, data, html.EscapeString)
		if err != nil {
			return Message{}, err
		}
		safe := r.ugc.Sanitize(body)
		return Message{
			Subject: subject,
			HTML:    safe,
			Text:    html.UnescapeString(strings.TrimSpace(r.strict.Sanitize(safe))),
		}, nil

	case FormatMarkdown:
		body, err := r.substitute(t.Body, data, nil)
		if err != nil {
			return Message{}, err
		}
		var out bytes.Buffer
		if err := r.md.Convert([]byte(body), &out); err != nil {
			return Message{}, fmt.Errorf("%w: convert markdown: %v", ErrRenderFailed, err)
		}
		return Message{
			Subject: subject,
			HTML:    r.ugc.Sanitize(out.String()),
			Text:    body,
		}, nil

	default:
		body, err := r.substitute(t.Body, data, nil)
		if err != nil {
			return Message{}, err
		}
		return Message{Subject: subject, Text: body}, nil
	}
}

// Validate renders the template for the given data and discards the result.
func (r *Renderer) Validate(t Template, data Data) error {
	_, err := r.Render(t, data)
	return err
}

func (r *Renderer) substitute(src string, data Data, escape func(string) string) (string, error) {
	var b strings.Builder
	b.Grow(len(src))
	for _, seg := range r.segments(src) {
		if !seg.placeholder {
			b.WriteString(seg.text)
			continue
		}
		v, ok := data.lookup(seg.text)
		if !ok {
			return "", &MissingVariableError{Name: seg.text}
		}
		if escape != nil {
			v = escape(v)
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

func (r *Renderer) segments(src string) []segment {
	if segs, ok := r.cache.Get(src); ok {
		return segs
	}
	segs := compile(src)
	r.cache.Add(src, segs)
	return segs
}
