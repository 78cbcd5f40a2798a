// Package normalize canonicalizes free-text labels so they can be compared.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var quoteFolder = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "‛", "'", "´", "'", "`", "'",
	"“", "\"", "”", "\"", "„", "\"", "«", "\"", "»", "\"",
	".", "", ",", "",
)

// Normalize lower-cases, strips accents, folds quotes, drops periods and
// commas and collapses whitespace. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = stripMarks(s)
	s = quoteFolder.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeAny normalizes string values and maps everything else, nil
// included, to the empty string.
func NormalizeAny(v any) string {
	switch s := v.(type) {
	case string:
		return Normalize(s)
	case *string:
		if s == nil {
			return ""
		}
		return Normalize(*s)
	default:
		return ""
	}
}

// Collapse trims s and reduces internal whitespace runs to one space
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TitleCase returns a display form for a label typed in by hand
func TitleCase(s string) string {
	return cases.Title(language.Und).String(Collapse(s))
}

// FullName joins the non-empty name parts with a single space
func FullName(first, last string) string {
	return Collapse(first + " " + last)
}

// stripMarks decomposes s and removes the combining marks, so "pérez"
// becomes "perez".
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
