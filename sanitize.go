package plume

import "strings"

// Per-field length caps applied after escaping.
const (
	MaxNameLen    = 100
	MaxBioLen     = 500
	MaxPostLen    = 500
	MaxCommentLen = 300
)

// htmlEscaper rewrites the five HTML-reserved characters plus '/'.
// The ampersand must be first so already-produced entities are not
// re-escaped by a later pass.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Sanitize trims surrounding whitespace, HTML-escapes the input and then
// truncates to maxLen runes. Truncation runs after escaping, so the cap is
// on the escaped form and a cut can land inside an entity; callers depend
// on post-escape lengths, so the ordering is kept. maxLen <= 0 disables
// the cap. Empty input yields the empty string.
func Sanitize(text string, maxLen int) string {
	if text == "" {
		return ""
	}

	s := htmlEscaper.Replace(strings.TrimSpace(text))

	if maxLen > 0 {
		runes := []rune(s)
		if len(runes) > maxLen {
			s = string(runes[:maxLen])
		}
	}

	return s
}

// SanitizeName cleans a display name.
func SanitizeName(name string) string {
	return Sanitize(name, MaxNameLen)
}

// SanitizeBio cleans a profile bio.
func SanitizeBio(bio string) string {
	return Sanitize(bio, MaxBioLen)
}

// SanitizePostText cleans a post body.
func SanitizePostText(text string) string {
	return Sanitize(text, MaxPostLen)
}

// SanitizeCommentText cleans a comment body.
func SanitizeCommentText(text string) string {
	return Sanitize(text, MaxCommentLen)
}
