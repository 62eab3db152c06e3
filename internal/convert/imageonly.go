package convert

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMinTextChars is the shortest text accepted as a real text layer
const DefaultMinTextChars = 20

var imagePlaceholder = regexp.MustCompile(`(?i)<!--\s*image\s*-->`)

// StripImagePlaceholders removes image markers left by markdown converters
func StripImagePlaceholders(text string) string {
	return imagePlaceholder.ReplaceAllString(text, "")
}

// IsImageOnly reports whether text carries no usable content: nothing but
// image placeholders and whitespace, or fewer than minChars characters.
func IsImageOnly(text string, minChars int) bool {
	stripped := strings.Join(strings.Fields(StripImagePlaceholders(text)), " ")
	if stripped == "" {
		return true
	}
	return utf8.RuneCountInString(stripped) < minChars
}
