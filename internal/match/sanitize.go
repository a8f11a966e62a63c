package match

import "regexp"

// punctuation covers the ASCII punctuation set: !"#$%&'()*+,-./ :;<=>?@
// [\]^_` {|}~
var punctuation = regexp.MustCompile("[!-/:-@\\[-`{-~]")

// Sanitize strips every ASCII punctuation character from s. Wildcard
// find and replace values pass through this before matching, which also
// removes any '*' markers they contain.
func Sanitize(s string) string {
	return punctuation.ReplaceAllString(s, "")
}
