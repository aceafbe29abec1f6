package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache_GetMissThenSet(t *testing.T) {
	c := NewMemoryCache()

	_, ok := c.Get("https://example.test/xhr")
	assert.False(t, ok)

	c.Set("https://example.test/xhr", ConditionalState{ETag: `"v1"`, LastModified: "Mon, 01 Jan 2024 00:00:00 GMT"})

	state, ok := c.Get("https://example.test/xhr")
	assert.True(t, ok)
	assert.Equal(t, `"v1"`, state.ETag)
	assert.Equal(t, "Mon, 01 Jan 2024 00:00:00 GMT", state.LastModified)
}

func TestMemoryCache_OverwritesPreviousState(t *testing.T) {
	c := NewMemoryCache()
	c.Set("k", ConditionalState{ETag: `"v1"`})
	c.Set("k", ConditionalState{ETag: `"v2"`})

	state, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, `"v2"`, state.ETag)
}

func TestCacheKey_Namespaced(t *testing.T) {
	assert.Equal(t, "courtwatch:conditional:https://x", cacheKey("https://x"))
}
