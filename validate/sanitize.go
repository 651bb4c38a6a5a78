package validate

import (
	"html"
	"regexp"
	"strings"
)

// maxFilenameLength caps sanitized filenames, leaving room for suffixes
// on common filesystems.
const maxFilenameLength = 200

// EscapeHTML escapes HTML metacharacters for safe display. The
// transform is reversible with html.UnescapeString.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

var (
	scriptBlockRe    = regexp.MustCompile(`(?is)<\s*(script|style|iframe|object|embed|form)\b[^>]*>.*?<\s*/\s*(script|style|iframe|object|embed|form)\s*>`)
	danglingTagRe    = regexp.MustCompile(`(?i)<\s*/?\s*(script|style|iframe|object|embed|form)\b[^>]*>`)
	eventHandlerRe   = regexp.MustCompile(`(?i)\s+on[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	jsURLRe          = regexp.MustCompile(`(?i)(href|src|action|formaction)\s*=\s*("|')?\s*(javascript|vbscript|data)\s*:[^"'\s>]*("|')?`)
	repeatedDotsRe   = regexp.MustCompile(`\.{2,}`)
	unsafeFileCharRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// SanitizeHTML strips active content from markup while keeping benign
// tags, for rendering limited rich text. Removed: script/style/iframe
// and similar embedding elements, inline event-handler attributes, and
// javascript:/data: URLs.
//
// This is a permissive filter, not a parser; treat its output as
// untrusted for any context other than rendering.
func SanitizeHTML(s string) string {
	out := scriptBlockRe.ReplaceAllString(s, "")
	out = danglingTagRe.ReplaceAllString(out, "")
	out = eventHandlerRe.ReplaceAllString(out, "")
	out = jsURLRe.ReplaceAllString(out, `$1=""`)
	return out
}

// SanitizeFilename reduces a name to a character whitelist, strips path
// separators and leading dots, and caps the length. The result contains
// no path separators and cannot name a hidden or parent-relative file.
func SanitizeFilename(name string) string {
	// Keep only the final path element regardless of separator style.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	name = unsafeFileCharRe.ReplaceAllString(name, "_")
	name = repeatedDotsRe.ReplaceAllString(name, ".")
	name = strings.TrimLeft(name, "._")

	if len(name) > maxFilenameLength {
		name = name[:maxFilenameLength]
	}
	if name == "" {
		name = "unnamed"
	}
	return name
}
