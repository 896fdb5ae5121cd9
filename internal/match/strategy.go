package match

import (
	"strings"

	"horse.fit/kerkhof/internal/place"
	"horse.fit/kerkhof/internal/slug"
)

// MatchType names the strategy that linked a discovered record to a
// canonical record.
type MatchType string

const (
	MatchExactIdentifier       MatchType = "exact-identifier"
	MatchCoordinateProximity   MatchType = "coordinate-proximity"
	MatchPostalCodeAndName     MatchType = "postal-code-and-name"
	MatchMunicipalityFuzzyName MatchType = "municipality-fuzzy-name"
)

// AllMatchTypes lists the strategies in cascade order.
var AllMatchTypes = []MatchType{
	MatchExactIdentifier,
	MatchCoordinateProximity,
	MatchPostalCodeAndName,
	MatchMunicipalityFuzzyName,
}

const (
	postalExactWeight         = 1.0
	postalPrefixWeight        = 0.9
	municipalityConfidenceCap = 0.8
)

// Candidate is one canonical record a strategy considers a match.
type Candidate struct {
	Index          int
	Slug           string
	Confidence     float64
	DistanceMeters *float64
	Similarity     *float64
}

// Strategy is one step of the matching cascade. TryMatch returns every
// qualifying candidate; an empty result hands the record to the next step.
type Strategy interface {
	Type() MatchType
	TryMatch(pool *Pool, d place.DiscoveredRecord) []Candidate
}

// DefaultStrategies returns the cascade in precedence order.
func DefaultStrategies(opts Options) []Strategy {
	return []Strategy{
		ExactIdentifier{},
		CoordinateProximity{ThresholdMeters: opts.CoordinateThresholdMeters},
		PostalCodeAndName{MinSimilarity: opts.PostalMinSimilarity},
		MunicipalityFuzzyName{MinSimilarity: opts.MunicipalityMinSimilarity},
	}
}

// ExactIdentifier links records sharing an external identifier: the
// discovered external id against the stored CID, or the place id on both sides.
type ExactIdentifier struct{}

func (ExactIdentifier) Type() MatchType { return MatchExactIdentifier }

func (ExactIdentifier) TryMatch(pool *Pool, d place.DiscoveredRecord) []Candidate {
	seen := make(map[int]struct{})
	var out []Candidate
	add := func(indexes []int) {
		for _, i := range indexes {
			if _, dup := seen[i]; dup {
				continue
			}
			seen[i] = struct{}{}
			out = append(out, Candidate{Index: i, Slug: pool.Slug(i), Confidence: 1})
		}
	}
	if id := strings.TrimSpace(d.ExternalID); id != "" {
		add(pool.byCID[id])
	}
	if placeID := strings.TrimSpace(d.PlaceID); placeID != "" {
		add(pool.byPlaceID[placeID])
	}
	return out
}

// CoordinateProximity links records closer than ThresholdMeters. Confidence
// falls linearly from 1 at zero distance to 0 at the threshold.
type CoordinateProximity struct {
	ThresholdMeters float64
}

func (CoordinateProximity) Type() MatchType { return MatchCoordinateProximity }

func (s CoordinateProximity) TryMatch(pool *Pool, d place.DiscoveredRecord) []Candidate {
	if s.ThresholdMeters <= 0 {
		return nil
	}
	coords := d.Coordinates()
	if coords == nil {
		return nil
	}

	var out []Candidate
	for _, i := range pool.withCoords {
		c := pool.entries[i].coordinates
		distance := HaversineMeters(coords.Lat, coords.Lon, c.Lat, c.Lon)
		if distance >= s.ThresholdMeters {
			continue
		}
		dist := distance
		out = append(out, Candidate{
			Index:          i,
			Slug:           pool.Slug(i),
			Confidence:     1 - distance/s.ThresholdMeters,
			DistanceMeters: &dist,
		})
	}
	return out
}

// PostalCodeAndName links records in the same postal area whose names are
// similar enough. Identical full postal codes weigh more than a shared prefix.
type PostalCodeAndName struct {
	MinSimilarity float64
}

func (PostalCodeAndName) Type() MatchType { return MatchPostalCodeAndName }

func (s PostalCodeAndName) TryMatch(pool *Pool, d place.DiscoveredRecord) []Candidate {
	code := d.EffectivePostalCode()
	key := place.PostalKey(code)
	if key == "" {
		return nil
	}
	compact := place.CompactPostalCode(code)

	var out []Candidate
	for _, i := range pool.byPostalKey[key] {
		entry := pool.entries[i]
		similarity := NameSimilarity(entry.name, d.Name)
		if similarity < s.MinSimilarity {
			continue
		}
		weight := postalPrefixWeight
		if entry.postalCompact == compact {
			weight = postalExactWeight
		}
		sim := similarity
		out = append(out, Candidate{
			Index:      i,
			Slug:       entry.slug,
			Confidence: similarity * weight,
			Similarity: &sim,
		})
	}
	return out
}

// MunicipalityFuzzyName links records in the same municipality by name alone.
// A discovered record without a municipality never matches here: a place
// name may belong to another municipality.
type MunicipalityFuzzyName struct {
	MinSimilarity float64
}

func (MunicipalityFuzzyName) Type() MatchType { return MatchMunicipalityFuzzyName }

func (s MunicipalityFuzzyName) TryMatch(pool *Pool, d place.DiscoveredRecord) []Candidate {
	key := slug.CompareKey(d.Municipality)
	if key == "" {
		return nil
	}

	var out []Candidate
	for _, i := range pool.byMunicipality[key] {
		entry := pool.entries[i]
		similarity := NameSimilarity(entry.name, d.Name)
		if similarity < s.MinSimilarity {
			continue
		}
		sim := similarity
		out = append(out, Candidate{
			Index:      i,
			Slug:       entry.slug,
			Confidence: similarity * municipalityConfidenceCap,
			Similarity: &sim,
		})
	}
	return out
}

const confidenceEpsilon = 1e-9

// pickBest returns the highest-confidence candidate, breaking ties by the
// lowest slug. tie reports whether a tie had to be broken.
func pickBest(candidates []Candidate) (best Candidate, tie bool) {
	for i, c := range candidates {
		if i == 0 {
			best = c
			continue
		}
		switch {
		case c.Confidence > best.Confidence+confidenceEpsilon:
			best = c
			tie = false
		case c.Confidence >= best.Confidence-confidenceEpsilon:
			tie = true
			if c.Slug < best.Slug {
				best = c
			}
		}
	}
	return best, tie
}
