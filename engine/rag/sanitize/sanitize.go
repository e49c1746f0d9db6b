// Package sanitize scrubs personally identifiable information from text
// before it leaves the system boundary toward an LLM provider. Masking is
// shape-preserving and irreversible: digits and email local parts are
// replaced by a mask rune while separators stay in place, so the output
// reveals the kind of value that was present but never the value itself.
package sanitize

import (
	"regexp"
	"strings"
)

// DefaultMask is the mask rune applied by Text and Value.
const DefaultMask = '*'

// maskedLocalWidth is the fixed width of a masked email local part.
const maskedLocalWidth = 5

type rule struct {
	pattern *regexp.Regexp
	apply   func(match string, mask rune) string
}

// rules run in most-specific-first order. A span that could match several
// patterns (a 16-digit run that embeds a 10-digit run, for example) is
// claimed by the earliest rule, which keeps the outcome deterministic
// regardless of regex engine scan order.
var rules = []rule{
	{regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), maskEmail},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), maskDigits},                 // US SSN
	{regexp.MustCompile(`\b\d{4}[ \-]?\d{4}[ \-]?\d{4}[ \-]?\d{4}\b`), maskDigits}, // card-shaped 16 digits
	{regexp.MustCompile(`\+\d{1,3}[ \-]?\d{2,4}[ \-]?\d{3,4}[ \-]?\d{3,4}\b`), maskDigits}, // international phone
	{regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`), maskDigits},                 // US dashed phone
	{regexp.MustCompile(`\b\d{10}\b`), maskDigits},                            // bare 10-digit phone
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), maskDigits},           // IPv4
}

// Text masks every PII span in s with the default mask rune.
func Text(s string) string {
	return TextWith(s, DefaultMask)
}

// TextWith masks every PII span in s with the given mask rune. Applying it
// to already-sanitized text is a no-op: masked spans contain no digits or
// addressable local parts, so no pattern matches again.
func TextWith(s string, mask rune) string {
	if s == "" {
		return s
	}
	for _, r := range rules {
		s = r.pattern.ReplaceAllStringFunc(s, func(match string) string {
			return r.apply(match, mask)
		})
	}
	return s
}

// Value walks maps and slices, sanitizing every string leaf and leaving
// non-string leaves untouched. The input is not mutated.
func Value(v any) any {
	return ValueWith(v, DefaultMask)
}

// ValueWith is Value with an explicit mask rune.
func ValueWith(v any, mask rune) any {
	switch t := v.(type) {
	case string:
		return TextWith(t, mask)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = ValueWith(item, mask)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = ValueWith(item, mask)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, item := range t {
			out[i] = TextWith(item, mask)
		}
		return out
	default:
		return v
	}
}

// Map sanitizes every string leaf of a metadata-shaped map.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, ok := ValueWith(m, DefaultMask).(map[string]any)
	if !ok {
		return m
	}
	return out
}

func maskEmail(match string, mask rune) string {
	at := strings.LastIndexByte(match, '@')
	if at < 0 {
		return match
	}
	return strings.Repeat(string(mask), maskedLocalWidth) + match[at:]
}

func maskDigits(match string, mask rune) string {
	var b strings.Builder
	b.Grow(len(match))
	for _, r := range match {
		if r >= '0' && r <= '9' {
			b.WriteRune(mask)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
