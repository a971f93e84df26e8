package template

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_CacheIsBounded(t *testing.T) {
	t.Parallel()

	r := NewRenderer(WithCacheSize(4))
	data := Data{Variables: map[string]string{"name": "Ann"}}

	// Every revision of the same template compiles to a new cache entry.
	for i := range 50 {
		tpl := Template{
			ID:      "weekly",
			Subject: "Issue " + strconv.Itoa(i),
			Body:    "Hello {{ name }}, revision " + strconv.Itoa(i),
			Format:  FormatText,
		}
		msg, err := r.Render(tpl, data)
		require.NoError(t, err)
		assert.Equal(t, "Hello Ann, revision "+strconv.Itoa(i), msg.Text)
		assert.LessOrEqual(t, r.cache.Len(), 4)
	}
	assert.Equal(t, 4, r.cache.Len())

	// The latest revision is still served from the cache.
	_, ok := r.cache.Get("Hello {{ name }}, revision 49")
	assert.True(t, ok)
}

func TestNewRenderer_DefaultCacheSize(t *testing.T) {
	t.Parallel()

	r := NewRenderer(WithCacheSize(0))
	for i := range DefaultCacheSize + 10 {
		r.segments("line " + strconv.Itoa(i) + " {{ name }}")
	}
	assert.Equal(t, DefaultCacheSize, r.cache.Len())
}
