package schema

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var labelSeparators = regexp.MustCompile(`[_\-\s]+`)

// DefaultLabeler converts a field name into a human-friendly label. It splits
// on underscores, dashes and camelCase boundaries and keeps acronyms intact,
// so "employeeIDs" becomes "Employee IDs".
func DefaultLabeler(name string) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}

	var words []string
	for _, chunk := range labelSeparators.Split(name, -1) {
		if chunk == "" {
			continue
		}
		for _, word := range strings.Fields(splitCamel(chunk)) {
			words = append(words, capitalize(word))
		}
	}
	return strings.Join(words, " ")
}

func splitCamel(input string) string {
	var out strings.Builder
	var prev rune
	for i, r := range input {
		if i > 0 && camelBoundary(prev, r) {
			out.WriteRune(' ')
		}
		out.WriteRune(r)
		prev = r
	}
	return out.String()
}

func camelBoundary(prev, r rune) bool {
	switch {
	case unicode.IsLower(prev) && unicode.IsUpper(r):
		return true
	case unicode.IsLetter(prev) && unicode.IsDigit(r):
		return true
	case unicode.IsDigit(prev) && unicode.IsLetter(r):
		return true
	}
	return false
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}
