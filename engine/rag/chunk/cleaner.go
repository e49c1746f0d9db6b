package chunk

import (
	"regexp"
	"strings"
)

var (
	spaceRunPattern   = regexp.MustCompile(`[ \t]+`)
	newlineRunPattern = regexp.MustCompile(`\n{3,}`)
	crPattern         = regexp.MustCompile(`\r\n|\r`)
)

// CleanText normalizes extracted text ahead of chunking: carriage returns
// become newlines, space and tab runs collapse to one space, runs of blank
// lines collapse to a single blank line, control runes are dropped, and
// line edges are trimmed. Idempotent: CleanText(CleanText(s)) == CleanText(s),
// which lets retries re-clean already-clean text safely.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = crPattern.ReplaceAllString(text, "\n")
	text = stripControlRunes(text)
	text = spaceRunPattern.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	text = strings.Join(lines, "\n")
	text = newlineRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func stripControlRunes(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, text)
}
