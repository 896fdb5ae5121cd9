package match

import (
	"math"
	"regexp"
	"strings"

	"horse.fit/kerkhof/internal/slug"
)

const earthRadiusMeters = 6371000.0

var (
	pipeSuffixPattern  = regexp.MustCompile(`(?i)\s*\|\s*(?:uitvaartcentrum|begraafplaats|crematorium|funeral home|crematory).*$`)
	dashSuffixPattern  = regexp.MustCompile(`(?i)\s*-\s*(?:uitvaartcentrum|begraafplaats|crematorium|funeral home|crematory).*$`)
	commaSuffixPattern = regexp.MustCompile(`\s*,.*$`)
)

// CleanName strips listing decorations such as "| Uitvaartcentrum Zuid" and
// trailing address fragments after a comma.
func CleanName(name string) string {
	out := pipeSuffixPattern.ReplaceAllString(name, "")
	out = dashSuffixPattern.ReplaceAllString(out, "")
	out = commaSuffixPattern.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// NameSimilarity scores two place names in [0,1]. Identical comparison keys
// score 1 and containment scores 0.9. Otherwise the higher of normalized
// edit similarity and token Jaccard is used.
func NameSimilarity(a, b string) float64 {
	cleanA := CleanName(a)
	cleanB := CleanName(b)
	keyA := slug.CompareKey(cleanA)
	keyB := slug.CompareKey(cleanB)

	if keyA == "" || keyB == "" {
		return 0
	}
	if keyA == keyB {
		return 1
	}
	if strings.Contains(keyA, keyB) || strings.Contains(keyB, keyA) {
		return 0.9
	}

	maxLen := max(len(keyA), len(keyB))
	edit := 1 - float64(levenshtein(keyA, keyB))/float64(maxLen)
	return math.Max(edit, tokenJaccard(slug.Tokens(cleanA), slug.Tokens(cleanB)))
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func tokenJaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, token := range a {
		setA[token] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, token := range b {
		setB[token] = struct{}{}
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// HaversineMeters is the great-circle distance between two WGS84 points.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}
