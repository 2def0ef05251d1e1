package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxBaseNameBytes leaves room under NAME_MAX for the group number suffix
// and the profile extension.
const maxBaseNameBytes = 200

// SafeBaseName turns a disc volume label into a base name usable for output
// files. Path separators, colons and asterisks become dashes. Shell-hostile
// punctuation and control characters are dropped. Runs of whitespace collapse
// to one space, and leading dots are removed so the output is never hidden.
// The result is empty when nothing usable remains.
func SafeBaseName(label string) string {
	var b strings.Builder
	pendingSpace := false
	for _, r := range label {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*':
			r = '-'
		case r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			continue
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
			continue
		case unicode.IsControl(r) || r == utf8.RuneError:
			continue
		case r == '.' && b.Len() == 0:
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return truncateBytes(strings.TrimRight(b.String(), ". "), maxBaseNameBytes)
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimRight(s[:n], ". ")
}
