package redirect

import "strings"

// Type prefixes found on retired record slugs, longest first so that
// "algemene-begraafplaats-" wins over "begraafplaats-".
var legacyTypePrefixes = []string{
	"rooms-katholieke-begraafplaats-",
	"gemeentelijke-begraafplaats-",
	"algemene-begraafplaats-",
	"joodse-begraafplaats-",
	"nieuwe-begraafplaats-",
	"oude-begraafplaats-",
	"dierenbegraafplaats-",
	"natuurbegraafplaats-",
	"rk-begraafplaats-",
	"nh-begraafplaats-",
	"begraafplaats-",
	"nh-kerkhof-",
	"cemetery-",
	"kerkhof-",
}

// Slug fragments that mark a cemetery family. A retired slug and a current
// slug sharing a marker are preferred as a pair.
var typeMarkers = []struct {
	legacy  string
	current string
}{
	{legacy: "joodse", current: "joods"},
	{legacy: "rk-", current: "rk-"},
	{legacy: "nh-", current: "nh-"},
	{legacy: "algemene", current: "algemene"},
	{legacy: "natuur", current: "natuur"},
}

// ExtractPlace guesses the place name at the end of a retired slug, e.g.
// "terborg" for both "joodse-begraafplaats-terborg" and "cemetery-terborg-terborg".
func ExtractPlace(legacySlug string) string {
	remaining := legacySlug
	for _, prefix := range legacyTypePrefixes {
		if strings.HasPrefix(legacySlug, prefix) {
			remaining = legacySlug[len(prefix):]
			break
		}
	}

	parts := strings.Split(remaining, "-")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func bestLegacyTarget(legacySlug string, records []indexedRecord) (string, bool) {
	placeSlug := ExtractPlace(legacySlug)
	if placeSlug == "" {
		return "", false
	}

	var matches []string
	for _, rec := range records {
		if rec.slug == placeSlug || strings.HasSuffix(rec.slug, "-"+placeSlug) {
			matches = append(matches, rec.slug)
		}
	}
	switch len(matches) {
	case 0:
		return "", false
	case 1:
		return matches[0], true
	}

	for _, candidate := range matches {
		for _, marker := range typeMarkers {
			if strings.Contains(legacySlug, marker.legacy) && strings.Contains(candidate, marker.current) {
				return candidate, true
			}
		}
	}
	return matches[0], true
}
