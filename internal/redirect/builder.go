package redirect

import (
	"strings"

	"horse.fit/kerkhof/internal/place"
	"horse.fit/kerkhof/internal/slug"
)

// Kind names the rule that produced a redirect entry.
type Kind string

const (
	KindVariant Kind = "variant"
	KindPrefix  Kind = "prefix"
	KindLegacy  Kind = "legacy"
)

// DefaultLegacyPrefixes are slug prefixes used by earlier versions of the site.
var DefaultLegacyPrefixes = []string{
	"cemetery-",
	"begraafplaats-",
	"kerkhof-",
	"graveyard-",
	"algemene-begraafplaats-",
}

type BuildOptions struct {
	Site           Site
	LegacyPrefixes []string
	// LegacySlugs are retired record slugs seen in the wild, e.g. in search
	// console reports.
	LegacySlugs []string
}

type BuildReport struct {
	Entries              int            `json:"entries"`
	ByKind               map[Kind]int   `json:"by_kind"`
	CurrentRecordSlugs   int            `json:"current_record_slugs"`
	CurrentMunicipality  int            `json:"current_municipality_slugs"`
	VariantsConsidered   int            `json:"variants_considered"`
	VariantsAlreadyLive  int            `json:"variants_already_live"`
	SkippedVariants      int            `json:"skipped_variants"`
	SkippedVariantNames  []string       `json:"skipped_variant_names,omitempty"`
	PrefixCollisions     int            `json:"prefix_collisions"`
	LegacyAlreadyLive    int            `json:"legacy_already_live"`
	LegacyUnresolved     int            `json:"legacy_unresolved"`
	DuplicatesDropped    int            `json:"duplicates_dropped"`
	SelfRedirectsDropped int            `json:"self_redirects_dropped"`
	SkippedByReason      map[string]int `json:"skipped_by_reason,omitempty"`
}

type indexedRecord struct {
	slug     string
	locality string
}

// Build derives the redirect table for the canonical set. It never fails:
// variants and legacy slugs without a resolvable destination are counted in
// the report and skipped.
func Build(records []place.CanonicalRecord, variants place.Variants, opts BuildOptions) ([]Entry, BuildReport) {
	site := opts.Site
	if site.MunicipalityPrefix == "" || site.RecordPrefix == "" {
		site = SiteNL
	}
	prefixes := opts.LegacyPrefixes
	if prefixes == nil {
		prefixes = DefaultLegacyPrefixes
	}

	report := BuildReport{
		ByKind:          map[Kind]int{},
		SkippedByReason: map[string]int{},
	}

	indexed := make([]indexedRecord, 0, len(records))
	recordSlugs := make(map[string]struct{}, len(records))
	municipalitySlugs := make(map[string]struct{})
	for _, rec := range records {
		recordSlug := strings.TrimSpace(rec.Slug)
		if recordSlug == "" {
			recordSlug = slug.ForRecord(rec.Name, rec.Municipality)
		}
		if recordSlug == "" {
			continue
		}
		recordSlugs[recordSlug] = struct{}{}
		if m := slug.Normalize(rec.Municipality); m != "" {
			municipalitySlugs[m] = struct{}{}
		}
		indexed = append(indexed, indexedRecord{
			slug:     recordSlug,
			locality: slug.Normalize(rec.Locality()),
		})
	}
	report.CurrentRecordSlugs = len(recordSlugs)
	report.CurrentMunicipality = len(municipalitySlugs)

	var entries []Entry
	emit := func(kind Kind, source, destination string) {
		entries = append(entries, Entry{Source: source, Destination: destination, Permanent: true})
		report.ByKind[kind]++
	}

	for _, name := range variants.Names() {
		report.VariantsConsidered++
		variantSlug := slug.Normalize(name)
		officialSlug := slug.Normalize(variants[name].Municipality)

		if variantSlug == "" || officialSlug == "" {
			report.SkippedVariants++
			report.SkippedByReason["empty_name"]++
			report.SkippedVariantNames = append(report.SkippedVariantNames, name)
			continue
		}
		if variantSlug == officialSlug {
			report.VariantsAlreadyLive++
			continue
		}
		if _, live := municipalitySlugs[variantSlug]; live {
			report.VariantsAlreadyLive++
			continue
		}
		if _, live := recordSlugs[variantSlug]; live {
			report.VariantsAlreadyLive++
			continue
		}
		if _, ok := municipalitySlugs[officialSlug]; !ok {
			report.SkippedVariants++
			report.SkippedByReason["municipality_not_found"]++
			report.SkippedVariantNames = append(report.SkippedVariantNames, name)
			continue
		}
		emit(KindVariant, site.municipalityPath(variantSlug), site.municipalityPath(officialSlug))
	}

	firstByLocality := make(map[string]string)
	localities := make([]string, 0)
	for _, rec := range indexed {
		if rec.locality == "" {
			continue
		}
		if _, exists := firstByLocality[rec.locality]; exists {
			continue
		}
		firstByLocality[rec.locality] = rec.slug
		localities = append(localities, rec.locality)
	}
	for _, locality := range localities {
		target := firstByLocality[locality]
		for _, prefix := range prefixes {
			prefix = normalizePrefix(prefix)
			if prefix == "" {
				continue
			}
			candidates := []string{
				prefix + locality,
				prefix + locality + "-" + locality,
			}
			for _, candidate := range candidates {
				if _, exists := recordSlugs[candidate]; exists {
					report.PrefixCollisions++
					continue
				}
				emit(KindPrefix, site.recordPath(candidate), site.recordPath(target))
			}
		}
	}

	for _, raw := range opts.LegacySlugs {
		legacy := slug.Normalize(raw)
		if legacy == "" {
			continue
		}
		if _, exists := recordSlugs[legacy]; exists {
			report.LegacyAlreadyLive++
			continue
		}
		target, ok := bestLegacyTarget(legacy, indexed)
		if !ok {
			report.LegacyUnresolved++
			continue
		}
		emit(KindLegacy, site.recordPath(legacy), site.recordPath(target))
	}

	entries, report.DuplicatesDropped, report.SelfRedirectsDropped = dedupe(entries)
	report.Entries = len(entries)
	if len(report.SkippedByReason) == 0 {
		report.SkippedByReason = nil
	}
	return entries, report
}

func normalizePrefix(prefix string) string {
	p := slug.Normalize(prefix)
	if p == "" {
		return ""
	}
	return p + "-"
}
