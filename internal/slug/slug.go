// Package slug turns free text into URL-safe identifiers and comparison keys.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters that do not decompose under NFD.
var foldReplacer = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae",
	"œ", "oe",
	"ø", "o",
	"ł", "l",
	"đ", "d",
	"ð", "d",
	"þ", "th",
	"ı", "i",
)

var apostropheReplacer = strings.NewReplacer(
	"'", "",
	"‘", "",
	"’", "",
	"ʼ", "",
	"`", "",
)

// Fold lower-cases text and strips diacritics. Non-letter characters are kept.
func Fold(text string) string {
	if text == "" {
		return ""
	}
	// transform.Chain keeps state, so each call gets its own chain.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}
	return foldReplacer.Replace(folded)
}

// Normalize returns the slug form of text: lower-case ASCII letters and digits
// separated by single hyphens. Empty or symbol-only input yields "".
func Normalize(text string) string {
	folded := apostropheReplacer.Replace(Fold(text))

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// ForRecord builds the slug of a record from its name and a disambiguating
// context such as the municipality.
func ForRecord(name string, context ...string) string {
	parts := make([]string, 0, len(context)+1)
	parts = append(parts, name)
	for _, c := range context {
		if strings.TrimSpace(c) != "" {
			parts = append(parts, c)
		}
	}
	return Normalize(strings.Join(parts, " "))
}

// CompareKey returns text folded to [a-z0-9] only, for fuzzy comparisons.
func CompareKey(text string) string {
	return strings.ReplaceAll(Normalize(text), "-", "")
}

// Tokens splits text into its slug words.
func Tokens(text string) []string {
	s := Normalize(text)
	if s == "" {
		return nil
	}
	return strings.Split(s, "-")
}
