package services

import (
	"strings"
	"unicode"
)

// FindGenres returns the keywords that occur in bio as whole words, in
// keyword order. Case is ignored and punctuation counts as a word break, so
// "Hip-Hop" in a bio matches the keyword "hip hop".
func FindGenres(bio string, keywords []string) []string {
	text := " " + flatten(bio) + " "
	var found []string
	for _, k := range keywords {
		word := flatten(k)
		if word == "" {
			continue
		}
		if strings.Contains(text, " "+word+" ") {
			found = append(found, k)
		}
	}
	return found
}

// flatten lowercases s and turns every run of non-alphanumerics into one space.
func flatten(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	})
	return strings.Join(fields, " ")
}
