package geocode

import (
	"context"
	"strings"

	"horse.fit/kerkhof/internal/place"
)

// EnrichReport summarizes a FillMunicipalities run.
type EnrichReport struct {
	Missing  int `json:"missing"`
	Filled   int `json:"filled"`
	Lookups  int `json:"lookups"`
	NotFound int `json:"not_found"`
	Failed   int `json:"failed"`
}

// FillMunicipalities sets the municipality of discovered records that lack
// one, using the four digit area of their postal code. Each area is looked up
// once. Records are modified in place; province is only filled when empty.
func (c *Client) FillMunicipalities(ctx context.Context, records []place.DiscoveredRecord) (EnrichReport, error) {
	report := EnrichReport{}
	type cached struct {
		result Result
		ok     bool
	}
	cache := make(map[string]cached)

	for i := range records {
		record := &records[i]
		if strings.TrimSpace(record.Municipality) != "" {
			continue
		}
		report.Missing++

		key := place.PostalKey(record.EffectivePostalCode())
		if len(key) != 4 {
			report.NotFound++
			continue
		}

		entry, seen := cache[key]
		if !seen {
			report.Lookups++
			result, ok, err := c.LookupPostcode(ctx, key)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return report, ctxErr
				}
				c.logger.Warn().Err(err).Str("postcode", key).Msg("postcode lookup failed")
				report.Failed++
				continue
			}
			entry = cached{result: result, ok: ok}
			cache[key] = entry
		}
		if !entry.ok || strings.TrimSpace(entry.result.Municipality) == "" {
			report.NotFound++
			continue
		}

		record.Municipality = entry.result.Municipality
		if strings.TrimSpace(record.Province) == "" {
			record.Province = entry.result.Province
		}
		report.Filled++
	}
	return report, nil
}
