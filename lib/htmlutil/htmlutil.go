// Package htmlutil cleans up text pulled off the page before it is used as
// a block name, tab filename, or collection-link display name. The
// pipeline package never walks raw DOM nodes itself — every text comes back
// through Locator.TextContent, per the capability-interface design in
// internal/pipeline/driver.go — so this stays limited to whitespace
// collapsing and non-printable stripping on plain strings.
package htmlutil

import (
	"regexp"
	"strings"
	"unicode"
)

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	var b strings.Builder
	for _, c := range s {
		if unicode.IsPrint(c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// CleanText strips non-printable characters, collapses runs of internal
// whitespace to a single space, and trims the result. Shared by the link
// collector's default name extraction, the default block-name heading
// walk, and the auto-extractor's file-tab text.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}
