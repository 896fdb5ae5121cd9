package match

import (
	"strings"

	"horse.fit/kerkhof/internal/place"
	"horse.fit/kerkhof/internal/slug"
)

type poolEntry struct {
	slug            string
	name            string
	postalKey       string
	postalCompact   string
	municipalityKey string
	coordinates     *place.Coordinates
}

// Pool is a read-only index over a snapshot of the canonical set. Strategies
// only read from it, so it can be shared by concurrent workers.
type Pool struct {
	entries        []poolEntry
	byCID          map[string][]int
	byPlaceID      map[string][]int
	byPostalKey    map[string][]int
	byMunicipality map[string][]int
	withCoords     []int
}

func NewPool(records []place.CanonicalRecord) *Pool {
	p := &Pool{
		entries:        make([]poolEntry, len(records)),
		byCID:          make(map[string][]int),
		byPlaceID:      make(map[string][]int),
		byPostalKey:    make(map[string][]int),
		byMunicipality: make(map[string][]int),
	}

	for i, rec := range records {
		entrySlug := strings.TrimSpace(rec.Slug)
		if entrySlug == "" {
			entrySlug = slug.ForRecord(rec.Name, rec.Municipality)
		}
		entry := poolEntry{
			slug:            entrySlug,
			name:            rec.Name,
			postalKey:       place.PostalKey(rec.PostalCode),
			postalCompact:   place.CompactPostalCode(rec.PostalCode),
			municipalityKey: slug.CompareKey(rec.Municipality),
		}
		if rec.Coordinates.Valid() {
			c := *rec.Coordinates
			entry.coordinates = &c
			p.withCoords = append(p.withCoords, i)
		}
		p.entries[i] = entry

		if cid := strings.TrimSpace(rec.PlaceCID); cid != "" {
			p.byCID[cid] = append(p.byCID[cid], i)
		}
		if placeID := strings.TrimSpace(rec.PlaceID); placeID != "" {
			p.byPlaceID[placeID] = append(p.byPlaceID[placeID], i)
		}
		if entry.postalKey != "" {
			p.byPostalKey[entry.postalKey] = append(p.byPostalKey[entry.postalKey], i)
		}
		if entry.municipalityKey != "" {
			p.byMunicipality[entry.municipalityKey] = append(p.byMunicipality[entry.municipalityKey], i)
		}
	}
	return p
}

func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Slug returns the slug of the record at index i.
func (p *Pool) Slug(i int) string {
	return p.entries[i].slug
}
