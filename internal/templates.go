package internal

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/mailcast/pkg/template"
)

// Template returns a stored template.
func (e *Engine) Template(ctx context.Context, id string) (template.Template, error) {
	return e.templates.GetTemplate(ctx, id)
}

// PutTemplate parses content, which may carry YAML frontmatter, and stores it under id.
func (e *Engine) PutTemplate(ctx context.Context, id string, content []byte) (template.Template, error) {
	t, err := template.Parse(id, content)
	if err != nil {
		return template.Template{}, err
	}
	if err := e.templates.PutTemplate(ctx, t); err != nil {
		return template.Template{}, persistenceError(err)
	}

	e.logger.InfoContext(ctx, "template stored",
		slog.String("template_id", id),
		slog.Any("placeholders", t.Placeholders()))
	return t, nil
}

// Preview renders a stored template without sending. Missing variables get sample values.
func (e *Engine) Preview(ctx context.Context, id string, variables map[string]string) (template.Message, error) {
	t, err := e.templates.GetTemplate(ctx, id)
	if err != nil {
		return template.Message{}, err
	}
	return e.renderer.Render(t, template.SampleData(t, variables, e.now()))
}
