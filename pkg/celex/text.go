package celex

import (
	"regexp"
	"strings"
)

var (
	missingSpaceAfterPunct = regexp.MustCompile(`([,;:!?.)}\]])(\S)`)
	spaceBeforePunct       = regexp.MustCompile(`\s+([,;:!?.])`)
	whitespaceRun          = regexp.MustCompile(`\s+`)
)

// NormalizeText canonicalizes extracted text: whitespace runs (including
// newlines and tabs) collapse to single spaces, spaces before sentence
// punctuation are removed, exactly one space follows punctuation when
// immediately followed by a non-space character, and surrounding whitespace
// is trimmed. Idempotent.
func NormalizeText(text string) string {
	text = missingSpaceAfterPunct.ReplaceAllString(text, "$1 $2")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
