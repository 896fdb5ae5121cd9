package redirect

import (
	"fmt"
	"strings"
)

// Rewrite is an unconditional path prefix substitution.
type Rewrite struct {
	From string
	To   string
}

// Site describes the URL layout of one site variant.
type Site struct {
	Name               string
	MunicipalityPrefix string
	RecordPrefix       string
	Rewrites           []Rewrite
}

var (
	SiteNL = Site{
		Name:               "nl",
		MunicipalityPrefix: "/gemeente/",
		RecordPrefix:       "/begraafplaats/",
		Rewrites: []Rewrite{
			{From: "/gemeenten/", To: "/gemeente/"},
			{From: "/begraafplaatsen/", To: "/begraafplaats/"},
			{From: "/provincies/", To: "/provincie/"},
		},
	}
	SiteUS = Site{
		Name:               "us",
		MunicipalityPrefix: "/city/",
		RecordPrefix:       "/cemetery/",
		Rewrites: []Rewrite{
			{From: "/cities/", To: "/city/"},
			{From: "/cemeteries/", To: "/cemetery/"},
			{From: "/states/", To: "/state/"},
		},
	}
)

// SiteByName returns the site variant registered under name.
func SiteByName(name string) (Site, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "nl":
		return SiteNL, nil
	case "us":
		return SiteUS, nil
	default:
		return Site{}, fmt.Errorf("unknown site variant %q", name)
	}
}

func (s Site) municipalityPath(slugValue string) string {
	return s.MunicipalityPrefix + slugValue
}

func (s Site) recordPath(slugValue string) string {
	return s.RecordPrefix + slugValue
}
