// Package wordcount measures CJK prose the way writers count it: one unit per
// Han ideograph plus one unit per run of Latin letters or digits.
package wordcount

import (
	"regexp"
	"strings"
	"unicode"
)

var wordRe = regexp.MustCompile(`\b\w+\b`)

// Count returns the number of units in text. Blank text counts as zero.
func Count(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	han := 0
	rest := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Han, r) {
			han++
			return ' '
		}
		return r
	}, text)

	return han + len(wordRe.FindAllStringIndex(rest, -1))
}
