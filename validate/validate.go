// Package validate provides signature-based injection detection and
// input sanitization.
//
// Detection is a blocklist and therefore incomplete by construction: it
// is a defense-in-depth signal, not a guarantee. Sanitized output must
// never be treated as safe to interpolate into a structured query; the
// authoritative defense for storage-bound input remains parameterized
// queries. This package flags, it does not fix.
package validate

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Threat identifies a detected injection family.
type Threat string

// Threat families. Families are evaluated independently and are not
// mutually exclusive; one input can trip several at once.
const (
	ThreatSQLInjection     Threat = "SQL_INJECTION"
	ThreatNoSQLInjection   Threat = "NOSQL_INJECTION"
	ThreatCommandInjection Threat = "COMMAND_INJECTION"
	ThreatPathTraversal    Threat = "PATH_TRAVERSAL"
)

// Options controls validation behavior. The zero value applies only
// threat detection.
type Options struct {
	// MaxLength rejects inputs longer than this many bytes. Zero means
	// no length limit.
	MaxLength int

	// RequireUTF8 rejects byte sequences that are not valid UTF-8.
	RequireUTF8 bool

	// Mode selects the sanitizer applied to produce Result.Sanitized.
	Mode SanitizeMode
}

// SanitizeMode selects which transform produces the sanitized output.
type SanitizeMode int

const (
	// SanitizeNone returns the input unchanged.
	SanitizeNone SanitizeMode = iota

	// SanitizeEscape HTML-escapes the input. Reversible, for display.
	SanitizeEscape

	// SanitizeRichText strips active HTML content but keeps markup,
	// for rendering limited rich text.
	SanitizeRichText
)

// Result is the outcome of validating one input.
type Result struct {
	Valid     bool
	Sanitized string
	Errors    []string
	Threats   []Threat
}

var sqlPatterns = []*regexp.Regexp{
	// Tautologies: ' OR '1'='1, " or 1=1, or 'a'='a
	regexp.MustCompile(`(?i)['"\s]\s*(or|and)\s+['"]?[\w]+['"]?\s*=\s*['"]?[\w]+`),
	// Statement keywords reaching into table space.
	regexp.MustCompile(`(?i)\b(union\s+(all\s+)?select|select\s+[\w\*,\s]+\s+from|insert\s+into|delete\s+from|drop\s+(table|database)|update\s+\w+\s+set|truncate\s+table)\b`),
	// Comment-based statement termination.
	regexp.MustCompile(`(--|#|/\*)\s*$|;\s*(--|#)`),
	// Stored procedure execution.
	regexp.MustCompile(`(?i)\b(exec(ute)?\s+(sp_|xp_)|waitfor\s+delay|benchmark\s*\()`),
}

var nosqlPatterns = []*regexp.Regexp{
	// Mongo operator injection: {"$gt": ""}, {$where: ...}
	regexp.MustCompile(`(?i)\$\s*(where|ne|gt|gte|lt|lte|in|nin|or|and|not|nor|regex|exists|expr|function)\b`),
	regexp.MustCompile(`(?i)\{\s*['"]?\$`),
	regexp.MustCompile(`(?i)\bmapreduce\s*:`),
}

var commandPatterns = []*regexp.Regexp{
	// Shell metacharacters chained to a command word.
	regexp.MustCompile(`(?i)[;&|]+\s*(ls|cat|rm|mv|cp|wget|curl|nc|bash|sh|zsh|python|perl|ruby|cmd|powershell|ping|chmod|chown|kill)\b`),
	// Command substitution.
	regexp.MustCompile("\\$\\(|`[^`]*`"),
	// Double chaining regardless of command.
	regexp.MustCompile(`&&|\|\|`),
	// Redirection into sensitive locations.
	regexp.MustCompile(`(?i)>+\s*/(etc|dev|proc|sys)/`),
}

var traversalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.\./|\.\.\\`),
	// URL and double encodings of "../".
	regexp.MustCompile(`(?i)(%2e%2e|%252e|\.%2e|%2e\.)([/\\]|%2f|%5c)`),
	regexp.MustCompile(`(?i)(^|[/\\])(etc[/\\]passwd|etc[/\\]shadow|windows[/\\]system32)`),
	regexp.MustCompile(`(?i)^(file|php|zip|glob)://`),
}

var threatFamilies = []struct {
	threat   Threat
	patterns []*regexp.Regexp
}{
	{ThreatSQLInjection, sqlPatterns},
	{ThreatNoSQLInjection, nosqlPatterns},
	{ThreatCommandInjection, commandPatterns},
	{ThreatPathTraversal, traversalPatterns},
}

// DetectThreats reports every injection family the input matches.
func DetectThreats(raw string) []Threat {
	var threats []Threat
	for _, family := range threatFamilies {
		for _, p := range family.patterns {
			if p.MatchString(raw) {
				threats = append(threats, family.threat)
				break
			}
		}
	}
	return threats
}

// ValidateInput runs threat detection and the configured sanitizer over
// a single raw input. It is pure: no side effects, no shared state.
func ValidateInput(raw string, opts Options) Result {
	res := Result{Valid: true, Sanitized: raw}

	if opts.MaxLength > 0 && len(raw) > opts.MaxLength {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf("input exceeds maximum length of %d bytes", opts.MaxLength))
	}

	if opts.RequireUTF8 && !utf8.ValidString(raw) {
		res.Valid = false
		res.Errors = append(res.Errors, "input is not valid UTF-8")
	}

	res.Threats = DetectThreats(raw)
	if len(res.Threats) > 0 {
		res.Valid = false
		for _, threat := range res.Threats {
			res.Errors = append(res.Errors, fmt.Sprintf("potential %s detected", threat))
		}
	}

	switch opts.Mode {
	case SanitizeEscape:
		res.Sanitized = EscapeHTML(raw)
	case SanitizeRichText:
		res.Sanitized = SanitizeHTML(raw)
	}

	return res
}
