package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailcast/pkg/template"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("frontmatter", func(t *testing.T) {
		t.Parallel()
		tpl, err := template.Parse("welcome", []byte("---\nsubject: Welcome {{name}}\nformat: markdown\n---\n# Hello\n"))
		require.NoError(t, err)
		assert.Equal(t, "welcome", tpl.ID)
		assert.Equal(t, "Welcome {{name}}", tpl.Subject)
		assert.Equal(t, template.FormatMarkdown, tpl.Format)
		assert.Equal(t, "# Hello\n", tpl.Body)
	})

	t.Run("crlf", func(t *testing.T) {
		t.Parallel()
		tpl, err := template.Parse("w", []byte("---\r\nsubject: Hi\r\n---\r\nbody"))
		require.NoError(t, err)
		assert.Equal(t, "Hi", tpl.Subject)
		assert.Equal(t, "body", tpl.Body)
		assert.Equal(t, template.FormatText, tpl.Format)
	})

	t.Run("no frontmatter", func(t *testing.T) {
		t.Parallel()
		tpl, err := template.Parse("plain", []byte("Hi {{name}}"))
		require.NoError(t, err)
		assert.Empty(t, tpl.Subject)
		assert.Equal(t, "Hi {{name}}", tpl.Body)
	})

	t.Run("unterminated", func(t *testing.T) {
		t.Parallel()
		_, err := template.Parse("bad", []byte("---\nsubject: x\nbody"))
		require.ErrorIs(t, err, template.ErrInvalidFrontmatter)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()
		_, err := template.Parse("bad", []byte("---\nsubject: [unclosed\n---\nbody"))
		require.ErrorIs(t, err, template.ErrInvalidFrontmatter)
	})

	t.Run("unknown format", func(t *testing.T) {
		t.Parallel()
		_, err := template.Parse("bad", []byte("---\nformat: rtf\n---\nbody"))
		require.ErrorIs(t, err, template.ErrUnknownFormat)
	})
}
