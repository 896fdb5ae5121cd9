package place

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	dutchPostalPattern = regexp.MustCompile(`\b(\d{4})\s?([A-Z]{2})\b`)
	usZIPPattern       = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)
)

// ExtractPostalCode finds a Dutch ("1312 SR") or US ("62701") postal code in
// a free-text address.
func ExtractPostalCode(address string) string {
	if m := dutchPostalPattern.FindStringSubmatch(address); m != nil {
		return m[1] + " " + m[2]
	}
	if m := usZIPPattern.FindStringSubmatch(address); m != nil {
		return m[1]
	}
	return ""
}

// CompactPostalCode upper-cases a postal code and removes whitespace.
func CompactPostalCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PostalKey is the comparable part of a postal code: its leading run of
// digits when that run has at least four digits, else the compacted code.
func PostalKey(code string) string {
	compact := CompactPostalCode(code)
	if compact == "" {
		return ""
	}
	end := 0
	for end < len(compact) && compact[end] >= '0' && compact[end] <= '9' {
		end++
	}
	if end >= 4 {
		return compact[:end]
	}
	return compact
}
