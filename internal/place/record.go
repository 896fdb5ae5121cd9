package place

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the pair lies in the WGS84 range and is not the 0,0 placeholder.
func (c *Coordinates) Valid() bool {
	if c == nil {
		return false
	}
	if c.Lat == 0 && c.Lon == 0 {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// CanonicalRecord is the published entity for one cemetery. Slug is immutable
// once assigned. Keys in the input document that are not modelled here are
// kept in Extra and written back unchanged.
type CanonicalRecord struct {
	Slug         string       `json:"slug"`
	Name         string       `json:"name"`
	Municipality string       `json:"municipality"`
	Province     string       `json:"province,omitempty"`
	Place        string       `json:"place,omitempty"`
	Type         string       `json:"type,omitempty"`
	Address      string       `json:"address,omitempty"`
	PostalCode   string       `json:"postal_code,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
	PlaceID      string       `json:"place_id,omitempty"`
	PlaceCID     string       `json:"place_cid,omitempty"`
	Rating       *float64     `json:"rating,omitempty"`
	ReviewCount  *int         `json:"review_count,omitempty"`
	PhotoURL     string       `json:"photo_url,omitempty"`
	OpeningHours string       `json:"opening_hours,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Website      string       `json:"website,omitempty"`
	Facilities   []string     `json:"facilities,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type canonicalFields CanonicalRecord

var canonicalKeys = map[string]struct{}{
	"slug":          {},
	"name":          {},
	"municipality":  {},
	"province":      {},
	"place":         {},
	"type":          {},
	"address":       {},
	"postal_code":   {},
	"coordinates":   {},
	"place_id":      {},
	"place_cid":     {},
	"rating":        {},
	"review_count":  {},
	"photo_url":     {},
	"opening_hours": {},
	"phone":         {},
	"website":       {},
	"facilities":    {},
}

func (r *CanonicalRecord) UnmarshalJSON(data []byte) error {
	var fields canonicalFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for key := range canonicalKeys {
		delete(all, key)
	}
	if len(all) > 0 {
		fields.Extra = all
	} else {
		fields.Extra = nil
	}

	*r = CanonicalRecord(fields)
	return nil
}

func (r CanonicalRecord) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(canonicalFields(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(r.Extra)+len(canonicalKeys))
	for key, value := range r.Extra {
		merged[key] = value
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, fmt.Errorf("re-read canonical fields: %w", err)
	}
	for key, value := range fields {
		merged[key] = value
	}
	return json.Marshal(merged)
}

// Clone returns a deep copy of r.
func (r CanonicalRecord) Clone() CanonicalRecord {
	out := r
	if r.Coordinates != nil {
		c := *r.Coordinates
		out.Coordinates = &c
	}
	if r.Rating != nil {
		v := *r.Rating
		out.Rating = &v
	}
	if r.ReviewCount != nil {
		v := *r.ReviewCount
		out.ReviewCount = &v
	}
	if r.Facilities != nil {
		out.Facilities = append([]string(nil), r.Facilities...)
	}
	if r.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for key, value := range r.Extra {
			out.Extra[key] = append(json.RawMessage(nil), value...)
		}
	}
	return out
}

// Locality is the place name a record is filed under: its place when known,
// otherwise its municipality.
func (r CanonicalRecord) Locality() string {
	if p := strings.TrimSpace(r.Place); p != "" {
		return p
	}
	return strings.TrimSpace(r.Municipality)
}

// DecodeCanonical reads a JSON array of canonical records.
func DecodeCanonical(raw []byte) ([]CanonicalRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("canonical collection is empty")
	}
	var records []CanonicalRecord
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("decode canonical records: %w", err)
	}
	return records, nil
}
