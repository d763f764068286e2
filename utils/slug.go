package utils

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// Slugify turns a title into a lowercase ASCII path segment:
// "Amélie" -> "amelie", "Spider-Man: No Way Home" -> "spider-man-no-way-home".
// Titles with nothing transliterable yield "".
func Slugify(title string) string {
	ascii := unidecode.Unidecode(title)
	var b strings.Builder
	b.Grow(len(ascii))
	dash := false
	for _, r := range strings.ToLower(ascii) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
