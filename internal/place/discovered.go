package place

import (
	"strings"
	"time"
)

// DiscoveredRecord is a scraped candidate that still has to be reconciled
// against the canonical set.
type DiscoveredRecord struct {
	ExternalID    string     `json:"external_id"`
	PlaceID       string     `json:"place_id,omitempty"`
	Name          string     `json:"name"`
	OriginalTitle string     `json:"original_title,omitempty"`
	Address       string     `json:"address,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Website       string     `json:"website,omitempty"`
	Latitude      *float64   `json:"latitude,omitempty"`
	Longitude     *float64   `json:"longitude,omitempty"`
	Place         string     `json:"place,omitempty"`
	Municipality  string     `json:"municipality,omitempty"`
	Province      string     `json:"province,omitempty"`
	PostalCode    string     `json:"postal_code,omitempty"`
	Rating        *float64   `json:"rating,omitempty"`
	ReviewCount   *int       `json:"review_count,omitempty"`
	BusinessType  string     `json:"business_type,omitempty"`
	Categories    []string   `json:"categories,omitempty"`
	OpeningHours  string     `json:"opening_hours,omitempty"`
	PhotoURL      string     `json:"photo_url,omitempty"`
	Facilities    []string   `json:"facilities,omitempty"`
	SearchQuery   string     `json:"search_query,omitempty"`
	DiscoveredAt  *time.Time `json:"discovered_at,omitempty"`
}

// Coordinates returns the record position, or nil when it is missing or invalid.
func (d DiscoveredRecord) Coordinates() *Coordinates {
	if d.Latitude == nil || d.Longitude == nil {
		return nil
	}
	c := &Coordinates{Lat: *d.Latitude, Lon: *d.Longitude}
	if !c.Valid() {
		return nil
	}
	return c
}

// EffectivePostalCode returns the stated postal code, falling back to one
// found in the address.
func (d DiscoveredRecord) EffectivePostalCode() string {
	if pc := strings.TrimSpace(d.PostalCode); pc != "" {
		return pc
	}
	return ExtractPostalCode(d.Address)
}
