package plume_test

import (
	"strings"
	"testing"

	"github.com/mwrks/plume"
	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	t.Run("escapes html reserved characters", func(t *testing.T) {
		got := plume.Sanitize(`<script>alert("hi")</script>`, 0)
		assert.Equal(t, "&lt;script&gt;alert(&quot;hi&quot;)&lt;&#x2F;script&gt;", got)
		assert.NotContains(t, got, "<")
		assert.NotContains(t, got, ">")
	})

	t.Run("escapes quotes and slash", func(t *testing.T) {
		assert.Equal(t, "it&#x27;s a&#x2F;b", plume.Sanitize("it's a/b", 0))
	})

	t.Run("does not double escape ampersands", func(t *testing.T) {
		// A literal "&lt;" in the input escapes its ampersand exactly once.
		assert.Equal(t, "&amp;lt;", plume.Sanitize("&lt;", 0))
		assert.Equal(t, "a &amp; b", plume.Sanitize("a & b", 0))
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		assert.Equal(t, "hello", plume.Sanitize("  hello\n\t", 0))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, "", plume.Sanitize("", 10))
		assert.Equal(t, "", plume.Sanitize("   ", 10))
	})

	t.Run("truncates to max runes", func(t *testing.T) {
		got := plume.Sanitize(strings.Repeat("a", 20), 5)
		assert.Equal(t, "aaaaa", got)
	})

	t.Run("truncation counts runes not bytes", func(t *testing.T) {
		got := plume.Sanitize(strings.Repeat("é", 10), 4)
		assert.Equal(t, "éééé", got)
	})

	t.Run("truncation applies to escaped form", func(t *testing.T) {
		// "<" escapes to 4 runes, so the cap bites earlier than the raw length.
		got := plume.Sanitize("<<<", 4)
		assert.Equal(t, "&lt;", got)
	})

	t.Run("no cap when maxLen is zero", func(t *testing.T) {
		long := strings.Repeat("x", 10_000)
		assert.Equal(t, long, plume.Sanitize(long, 0))
	})
}

func TestSanitizeFieldCaps(t *testing.T) {
	assert.Len(t, plume.SanitizeName(strings.Repeat("n", 200)), plume.MaxNameLen)
	assert.Len(t, plume.SanitizeBio(strings.Repeat("b", 600)), plume.MaxBioLen)
	assert.Len(t, plume.SanitizePostText(strings.Repeat("p", 600)), plume.MaxPostLen)
	assert.Len(t, plume.SanitizeCommentText(strings.Repeat("c", 400)), plume.MaxCommentLen)
}
