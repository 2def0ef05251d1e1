package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnknownTitle is used when a name has no letters or digits.
const UnknownTitle = "Unknown Disc"

// DiscTitle turns an image base name or volume label ("MY_MOVIE_D1") into
// a display title ("My Movie D1"). Separators collapse to single spaces.
func DiscTitle(name string) string {
	var b strings.Builder
	prevSpace := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(b.String())
	if title == "" {
		return UnknownTitle
	}
	return cases.Title(language.Und).String(title)
}
