package match

import (
	"strings"

	"horse.fit/kerkhof/internal/place"
)

// Field names a mergeable canonical attribute.
type Field string

const (
	FieldRating       Field = "rating"
	FieldReviewCount  Field = "review_count"
	FieldOpeningHours Field = "opening_hours"
	FieldPhone        Field = "phone"
	FieldWebsite      Field = "website"
	FieldCoordinates  Field = "coordinates"
	FieldPhotoURL     Field = "photo_url"
	FieldFacilities   Field = "facilities"
	FieldPlaceID      Field = "place_id"
	FieldPlaceCID     Field = "place_cid"
	FieldAddress      Field = "address"
	FieldPostalCode   Field = "postal_code"
)

// AlwaysRefreshFields are live popularity signals that every newer scrape
// overwrites. They cannot be turned off.
var AlwaysRefreshFields = []Field{FieldRating, FieldReviewCount}

// OptionalRefreshFields may be added to the refresh set. Every other field is
// filled only when empty.
var OptionalRefreshFields = []Field{FieldPhotoURL}

// AllFields lists every mergeable field in merge order.
var AllFields = []Field{
	FieldRating,
	FieldReviewCount,
	FieldOpeningHours,
	FieldPhone,
	FieldWebsite,
	FieldCoordinates,
	FieldPhotoURL,
	FieldFacilities,
	FieldPlaceID,
	FieldPlaceCID,
	FieldAddress,
	FieldPostalCode,
}

// ParseRefreshField maps a field name to a Field that may be refreshed.
func ParseRefreshField(name string) (Field, bool) {
	field, ok := ParseField(name)
	if !ok || !refreshAllowed(field) {
		return "", false
	}
	return field, true
}

func refreshAllowed(field Field) bool {
	for _, f := range AlwaysRefreshFields {
		if f == field {
			return true
		}
	}
	for _, f := range OptionalRefreshFields {
		if f == field {
			return true
		}
	}
	return false
}

// ParseField maps a field name to a Field.
func ParseField(name string) (Field, bool) {
	candidate := Field(strings.ToLower(strings.TrimSpace(name)))
	for _, f := range AllFields {
		if f == candidate {
			return f, true
		}
	}
	return "", false
}

type fieldChange int

const (
	changeNone fieldChange = iota
	changeFilled
	changeRefreshed
)

// merger applies discovered values to canonical records. written tracks the
// fields already set during this run so that each canonical field changes at
// most once, whatever the number of matching discoveries.
type merger struct {
	refresh map[Field]struct{}
	written map[int]map[Field]struct{}
}

// newMerger always refreshes AlwaysRefreshFields. Entries of extraRefresh
// outside OptionalRefreshFields are ignored.
func newMerger(extraRefresh []Field) *merger {
	refresh := make(map[Field]struct{}, len(AlwaysRefreshFields)+len(extraRefresh))
	for _, f := range AlwaysRefreshFields {
		refresh[f] = struct{}{}
	}
	for _, f := range extraRefresh {
		if refreshAllowed(f) {
			refresh[f] = struct{}{}
		}
	}
	return &merger{
		refresh: refresh,
		written: make(map[int]map[Field]struct{}),
	}
}

func (m *merger) apply(index int, rec *place.CanonicalRecord, d place.DiscoveredRecord) (filled, refreshed []Field) {
	written := m.written[index]
	if written == nil {
		written = make(map[Field]struct{})
		m.written[index] = written
	}

	for _, field := range AllFields {
		if _, done := written[field]; done {
			continue
		}
		_, refreshable := m.refresh[field]
		switch mergeField(rec, d, field, refreshable) {
		case changeFilled:
			written[field] = struct{}{}
			filled = append(filled, field)
		case changeRefreshed:
			written[field] = struct{}{}
			refreshed = append(refreshed, field)
		}
	}
	return filled, refreshed
}

func mergeField(rec *place.CanonicalRecord, d place.DiscoveredRecord, field Field, refreshable bool) fieldChange {
	switch field {
	case FieldRating:
		if d.Rating == nil {
			return changeNone
		}
		if rec.Rating == nil {
			v := *d.Rating
			rec.Rating = &v
			return changeFilled
		}
		if refreshable && *rec.Rating != *d.Rating {
			v := *d.Rating
			rec.Rating = &v
			return changeRefreshed
		}
	case FieldReviewCount:
		if d.ReviewCount == nil {
			return changeNone
		}
		if rec.ReviewCount == nil {
			v := *d.ReviewCount
			rec.ReviewCount = &v
			return changeFilled
		}
		if refreshable && *rec.ReviewCount != *d.ReviewCount {
			v := *d.ReviewCount
			rec.ReviewCount = &v
			return changeRefreshed
		}
	case FieldCoordinates:
		coords := d.Coordinates()
		if coords == nil {
			return changeNone
		}
		if !rec.Coordinates.Valid() {
			rec.Coordinates = coords
			return changeFilled
		}
		if refreshable && *rec.Coordinates != *coords {
			rec.Coordinates = coords
			return changeRefreshed
		}
	case FieldFacilities:
		incoming := uniqueStrings(d.Facilities)
		if len(incoming) == 0 {
			return changeNone
		}
		if len(rec.Facilities) == 0 {
			rec.Facilities = incoming
			return changeFilled
		}
		if refreshable && !equalStrings(rec.Facilities, incoming) {
			rec.Facilities = incoming
			return changeRefreshed
		}
	case FieldOpeningHours:
		return mergeString(&rec.OpeningHours, d.OpeningHours, refreshable)
	case FieldPhone:
		return mergeString(&rec.Phone, d.Phone, refreshable)
	case FieldWebsite:
		return mergeString(&rec.Website, d.Website, refreshable)
	case FieldPhotoURL:
		return mergeString(&rec.PhotoURL, d.PhotoURL, refreshable)
	case FieldPlaceID:
		return mergeString(&rec.PlaceID, d.PlaceID, refreshable)
	case FieldPlaceCID:
		return mergeString(&rec.PlaceCID, d.ExternalID, refreshable)
	case FieldAddress:
		return mergeString(&rec.Address, d.Address, refreshable)
	case FieldPostalCode:
		return mergeString(&rec.PostalCode, d.EffectivePostalCode(), refreshable)
	}
	return changeNone
}

func mergeString(target *string, incoming string, refreshable bool) fieldChange {
	value := strings.TrimSpace(incoming)
	if value == "" {
		return changeNone
	}
	if strings.TrimSpace(*target) == "" {
		*target = value
		return changeFilled
	}
	if refreshable && *target != value {
		*target = value
		return changeRefreshed
	}
	return changeNone
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
