package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hello", Truncate("hello", 0))
	assert.Equal(t, "hello w...", Truncate("hello world again", 10))
	assert.Equal(t, "hel", Truncate("hello", 3))
	// trailing whitespace before the marker is dropped
	assert.Equal(t, "ab...", Truncate("ab   cdefgh", 8))
	// multi-byte characters count as one
	assert.Equal(t, "héllo...", Truncate("héllo wörld", 8))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "line one line two", Preview("line one\n\tline   two", 50))
}

func TestRenderTemplate(t *testing.T) {
	out := RenderTemplate("Hi {name} from {company}, {unknown} {name}!", map[string]string{
		"name":    "ada",
		"company": "",
	})
	assert.Equal(t, "Hi ada from , {unknown} ada!", out)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"name", "title"}, Placeholders("{name} {title} {name} {1bad}"))
	assert.Empty(t, Placeholders("no placeholders"))
}
