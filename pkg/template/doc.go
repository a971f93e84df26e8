// Package template renders campaign templates for a single recipient.
//
// Templates use {{ placeholder }} syntax. Four placeholders are built in and always
// resolvable: name, email, date and time. Every other placeholder must be supplied by the
// recipient's variables, otherwise rendering fails with a [*MissingVariableError]; the
// renderer never emits the literal placeholder text. Recipient variables shadow built-ins
// of the same name.
//
// Rendering is pure. The date and time built-ins come from [Data].Now rather than the wall
// clock, so a retried send renders exactly the content of the first attempt.
//
// # Template Format
//
// A template may start with YAML frontmatter carrying the subject and body format:
//
//	---
//	subject: Hello {{ name }}
//	format: markdown
//	---
//	Thanks for joining **{{ company }}** on {{ date }}.
//
// [Parse] reads that layout. Without frontmatter the subject is empty and the format is
// text. Supported formats are text, html and markdown.
//
// # Rendering
//
//	tpl, err := template.Parse("welcome", content)
//	r := template.NewRenderer()
//
//	msg, err := r.Render(tpl, template.Data{
//	    Name:      "Ada",
//	    Email:     "ada@example.com",
//	    Now:       startedAt,
//	    Variables: map[string]string{"company": "Acme"},
//	})
//	var missing *template.MissingVariableError
//	if errors.As(err, &missing) {
//	    // the recipient has no value for missing.Name
//	}
//
// Markdown bodies are converted to HTML with goldmark, and every HTML body is sanitized with
// bluemonday. Values substituted into an html body are escaped first. The plain-text
// alternative is the substituted source for markdown and text bodies, and the tag-stripped
// HTML for html bodies.
//
// Compiled subjects and bodies are kept in a bounded LRU cache; [WithCacheSize] changes its
// size from [DefaultCacheSize].
//
// # Previews
//
// [SampleData] fills every placeholder of a template with realistic sample values, so a
// template can be previewed before any recipient list exists. [Placeholders] lists the names
// a raw string references, in first-use order.
//
// # Errors
//
//   - [ErrMissingVariable]: matched by every [*MissingVariableError]
//   - [ErrInvalidFrontmatter]: the YAML header does not parse
//   - [ErrUnknownFormat]: the format is not text, html or markdown
//   - [ErrRenderFailed]: markdown conversion failed
//   - [ErrNotFound]: a template store has no template with the ID
package template
