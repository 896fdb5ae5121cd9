package match

import (
	"context"
	"reflect"
	"testing"

	"horse.fit/kerkhof/internal/place"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int { return &v }

func mustReconcile(t *testing.T, canonical []place.CanonicalRecord, discovered []place.DiscoveredRecord, opts Options) *Outcome {
	t.Helper()
	out, err := Reconcile(context.Background(), canonical, discovered, opts)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	return out
}

func TestReconcileCoordinateProximityScenario(t *testing.T) {
	t.Parallel()

	canonical := []place.CanonicalRecord{{
		Slug:         "st-marys-springfield",
		Name:         "St. Mary's Cemetery",
		Municipality: "Springfield",
		Coordinates:  &place.Coordinates{Lat: 39.78, Lon: -89.65},
	}}
	discovered := []place.DiscoveredRecord{{
		ExternalID:   "cid-1",
		Name:         "St Marys Cemetery",
		Municipality: "Springfield",
		Latitude:     floatPtr(39.7801),
		Longitude:    floatPtr(-89.6501),
		Rating:       floatPtr(4.5),
	}}

	out := mustReconcile(t, canonical, discovered, Options{})

	if len(out.Results) != 1 {
		t.Fatalf("expected 1 match, got %+v", out.Results)
	}
	res := out.Results[0]
	if res.MatchType != MatchCoordinateProximity {
		t.Fatalf("expected coordinate-proximity, got %s", res.MatchType)
	}
	if res.DistanceMeters == nil || *res.DistanceMeters >= DefaultCoordinateThresholdMeters {
		t.Fatalf("unexpected distance %v", res.DistanceMeters)
	}
	if res.Confidence <= 0 || res.Confidence > 1 {
		t.Fatalf("confidence out of range: %f", res.Confidence)
	}
	if got := out.Records[0].Rating; got == nil || *got != 4.5 {
		t.Fatalf("expected rating 4.5, got %v", got)
	}
	if canonical[0].Rating != nil {
		t.Fatalf("input record must not be modified")
	}
}

func TestReconcileExactIdentifierWinsOverPostal(t *testing.T) {
	t.Parallel()

	canonical := []place.CanonicalRecord{
		{Slug: "begraafplaats-zuid-almere", Name: "Begraafplaats Zuid", Municipality: "Almere", PostalCode: "1312 SR", PlaceCID: "111"},
		{Slug: "begraafplaats-zuid-almere-2", Name: "Begraafplaats Zuid", Municipality: "Almere", PostalCode: "1312 SR"},
	}
	discovered := []place.DiscoveredRecord{{
		ExternalID: "111",
		Name:       "Begraafplaats Zuid",
		PostalCode: "1312 SR",
	}}

	out := mustReconcile(t, canonical, discovered, Options{})
	if len(out.Results) != 1 || out.Results[0].MatchType != MatchExactIdentifier {
		t.Fatalf("expected exact-identifier match, got %+v", out.Results)
	}
	if out.Results[0].CanonicalSlug != "begraafplaats-zuid-almere" || out.Results[0].Confidence != 1 {
		t.Fatalf("unexpected result %+v", out.Results[0])
	}
}

func TestReconcileFillOnceAndRefresh(t *testing.T) {
	t.Parallel()

	canonical := []place.CanonicalRecord{{
		Slug:        "kerkhof-lutten",
		Name:        "Kerkhof Lutten",
		PlaceCID:    "42",
		Phone:       "0523-111111",
		Rating:      floatPtr(3.9),
		ReviewCount: intPtr(10),
	}}
	discovered := []place.DiscoveredRecord{{
		ExternalID:   "42",
		Name:         "Kerkhof Lutten",
		Phone:        "0523-999999",
		Rating:       floatPtr(4.2),
		ReviewCount:  intPtr(12),
		OpeningHours: "dag. 08:00-20:00",
		Facilities:   []string{"parking", "Parking", " water "},
	}}

	out := mustReconcile(t, canonical, discovered, Options{})
	rec := out.Records[0]

	if rec.Phone != "0523-111111" {
		t.Fatalf("phone is fill-once, got %q", rec.Phone)
	}
	if rec.Rating == nil || *rec.Rating != 4.2 {
		t.Fatalf("rating must be refreshed, got %v", rec.Rating)
	}
	if rec.ReviewCount == nil || *rec.ReviewCount != 12 {
		t.Fatalf("review count must be refreshed, got %v", rec.ReviewCount)
	}
	if rec.OpeningHours != "dag. 08:00-20:00" {
		t.Fatalf("opening hours should be filled, got %q", rec.OpeningHours)
	}
	if !reflect.DeepEqual(rec.Facilities, []string{"parking", "water"}) {
		t.Fatalf("unexpected facilities %v", rec.Facilities)
	}
	if out.Stats.FieldsRefreshed[FieldRating] != 1 || out.Stats.FieldsRefreshed[FieldReviewCount] != 1 {
		t.Fatalf("unexpected refresh stats %+v", out.Stats.FieldsRefreshed)
	}
	if out.Stats.FieldsFilled[FieldOpeningHours] != 1 || out.Stats.FieldsFilled[FieldPhone] != 0 {
		t.Fatalf("unexpected fill stats %+v", out.Stats.FieldsFilled)
	}
	if out.Stats.RecordsUpdated != 1 {
		t.Fatalf("expected 1 updated record, got %d", out.Stats.RecordsUpdated)
	}
}

func TestReconcileDuplicateDiscoveriesMutateOnce(t *testing.T) {
	t.Parallel()

	canonical := []place.CanonicalRecord{{
		Slug:     "begraafplaats-wierum-adorp",
		Name:     "Begraafplaats Wierum",
		PlaceCID: "777",
	}}
	discovered := []place.DiscoveredRecord{
		{ExternalID: "777", Name: "Begraafplaats Wierum", Facilities: []string{"parking"}, Rating: floatPtr(4.0), Phone: "050-1"},
		{ExternalID: "777", Name: "Begraafplaats Wierum", Facilities: []string{"parking", "toilet"}, Rating: floatPtr(4.8), Phone: "050-2"},
	}

	out := mustReconcile(t, canonical, discovered, Options{})
	rec := out.Records[0]

	if !reflect.DeepEqual(rec.Facilities, []string{"parking"}) {
		t.Fatalf("facilities must be written once, got %v", rec.Facilities)
	}
	if rec.Rating == nil || *rec.Rating != 4.0 {
		t.Fatalf("rating must be written once per run, got %v", rec.Rating)
	}
	if rec.Phone != "050-1" {
		t.Fatalf("phone must be written once per run, got %q", rec.Phone)
	}
	if out.Stats.Matched != 2 || out.Stats.RepeatMatches != 1 {
		t.Fatalf("unexpected stats %+v", out.Stats)
	}
	if len(out.Results[1].FieldsFilled) != 0 || len(out.Results[1].FieldsRefreshed) != 0 {
		t.Fatalf("second discovery must not change fields, got %+v", out.Results[1])
	}
	if out.Stats.FieldsFilled[FieldFacilities] != 1 {
		t.Fatalf("expected one facilities fill, got %d", out.Stats.FieldsFilled[FieldFacilities])
	}
}

func TestReconcileTieBreaksByLowestSlug(t *testing.T) {
	t.Parallel()

	coords := &place.Coordinates{Lat: 52.5, Lon: 6.4}
	canonical := []place.CanonicalRecord{
		{Slug: "b-kerkhof", Name: "Kerkhof B", Coordinates: coords},
		{Slug: "a-kerkhof", Name: "Kerkhof A", Coordinates: coords},
	}
	discovered := []place.DiscoveredRecord{{
		ExternalID: "x",
		Name:       "Kerkhof",
		Latitude:   floatPtr(52.5001),
		Longitude:  floatPtr(6.4),
	}}

	out := mustReconcile(t, canonical, discovered, Options{})
	if out.Results[0].CanonicalSlug != "a-kerkhof" || !out.Results[0].TieBreak {
		t.Fatalf("expected tie broken to a-kerkhof, got %+v", out.Results[0])
	}
	if out.Stats.TieBreaks != 1 {
		t.Fatalf("expected 1 tie break, got %d", out.Stats.TieBreaks)
	}
}

func TestReconcileNearestWithinThreshold(t *testing.T) {
	t.Parallel()

	canonical := []place.CanonicalRecord{
		{Slug: "far", Name: "Far", Coordinates: &place.Coordinates{Lat: 52.0006, Lon: 5.0}},
		{Slug: "near", Name: "Near", Coordinates: &place.Coordinates{Lat: 52.0001, Lon: 5.0}},
		{Slug: "outside", Name: "Outside", Coordinates: &place.Coordinates{Lat: 52.01, Lon: 5.0}},
	}
	discovered := []place.DiscoveredRecord{{ExternalID: "x", Name: "Somewhere", Latitude: floatPtr(52.0), Longitude: floatPtr(5.0)}}

	out := mustReconcile(t, canonical, discovered, Options{})
	if out.Results[0].CanonicalSlug != "near" || out.Results[0].Candidates != 2 {
		t.Fatalf("unexpected result %+v", out.Results[0])
	}
}

func TestReconcilePostalAndMunicipalityStrategies(t *testing.T) {
	t.Parallel()

	canonical := []place.CanonicalRecord{
		{Slug: "algemene-begraafplaats-kloetinge", Name: "Algemene Begraafplaats Kloetinge", Municipality: "Goes", PostalCode: "4481 AA"},
		{Slug: "oude-begraafplaats-heerde", Name: "Oude Begraafplaats", Municipality: "Heerde"},
	}
	discovered := []place.DiscoveredRecord{
		{ExternalID: "p1", Name: "Algemene Begraafplaats Kloetinge | Uitvaartcentrum Goes", Address: "Kerkstraat 1, 4481 BB Kloetinge"},
		{ExternalID: "m1", Name: "Oude begraafplaats, Heerde", Municipality: "Heerde"},
		{ExternalID: "u1", Name: "Natuurbegraafplaats De Hoge Veluwe", Municipality: "Ede"},
	}

	out := mustReconcile(t, canonical, discovered, Options{})

	if out.Stats.MatchedByType[MatchPostalCodeAndName] != 1 || out.Stats.MatchedByType[MatchMunicipalityFuzzyName] != 1 {
		t.Fatalf("unexpected match types %+v", out.Stats.MatchedByType)
	}
	postal := out.Results[0]
	if postal.CanonicalSlug != "algemene-begraafplaats-kloetinge" || postal.Confidence != 0.9 {
		t.Fatalf("postal prefix match should be weighted 0.9, got %+v", postal)
	}
	muni := out.Results[1]
	if muni.CanonicalSlug != "oude-begraafplaats-heerde" || muni.Confidence > municipalityConfidenceCap {
		t.Fatalf("unexpected municipality match %+v", muni)
	}
	if out.Stats.Unmatched != 1 || out.Unmatched[0].ExternalID != "u1" {
		t.Fatalf("expected u1 to be unmatched, got %+v", out.Unmatched)
	}
	if len(out.Records) != 2 {
		t.Fatalf("unmatched records must not be created, got %d records", len(out.Records))
	}
}

func TestReconcileQuarantinesNamelessRecords(t *testing.T) {
	t.Parallel()

	out := mustReconcile(t, nil, []place.DiscoveredRecord{{ExternalID: "z", Name: "   "}}, Options{})
	if out.Stats.Quarantined != 1 || out.Quarantined[0].ExternalID != "z" {
		t.Fatalf("expected quarantine, got %+v", out)
	}
	out.AddQuarantined(Quarantined{DiscoveredIndex: 3, Reason: "schema"})
	if out.Stats.Quarantined != 2 || out.Stats.TotalDiscovered != 2 {
		t.Fatalf("unexpected stats after AddQuarantined %+v", out.Stats)
	}
}

func TestOutcomeRemapIndexes(t *testing.T) {
	t.Parallel()

	discovered := []place.DiscoveredRecord{
		{ExternalID: "a", Name: "   "},
		{ExternalID: "b", Name: "Nergens Begraafplaats"},
	}
	out := mustReconcile(t, nil, discovered, Options{})
	out.RemapIndexes([]int{4, 7})

	if out.Quarantined[0].DiscoveredIndex != 4 {
		t.Fatalf("quarantine index = %d, want 4", out.Quarantined[0].DiscoveredIndex)
	}
	if out.Unmatched[0].DiscoveredIndex != 7 {
		t.Fatalf("unmatched index = %d, want 7", out.Unmatched[0].DiscoveredIndex)
	}
}

func TestReconcileIndependentOfWorkerCount(t *testing.T) {
	t.Parallel()

	var canonical []place.CanonicalRecord
	var discovered []place.DiscoveredRecord
	for i := 0; i < 40; i++ {
		lat := 52.0 + float64(i)*0.01
		canonical = append(canonical, place.CanonicalRecord{
			Slug:        "kerkhof-" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			Name:        "Kerkhof",
			Coordinates: &place.Coordinates{Lat: lat, Lon: 5},
		})
		for j := 0; j < 2; j++ {
			discovered = append(discovered, place.DiscoveredRecord{
				ExternalID: "d",
				Name:       "Kerkhof",
				Latitude:   floatPtr(lat + 0.0001*float64(j)),
				Longitude:  floatPtr(5),
				Rating:     floatPtr(float64(j) + 3),
				Phone:      "phone-" + string(rune('0'+j)),
			})
		}
	}

	serial := mustReconcile(t, canonical, discovered, Options{Workers: 1})
	parallel := mustReconcile(t, canonical, discovered, Options{Workers: 8})

	if !reflect.DeepEqual(serial.Results, parallel.Results) {
		t.Fatalf("results differ between worker counts")
	}
	if !reflect.DeepEqual(serial.Records, parallel.Records) {
		t.Fatalf("records differ between worker counts")
	}
	if !reflect.DeepEqual(serial.Stats, parallel.Stats) {
		t.Fatalf("stats differ: %+v vs %+v", serial.Stats, parallel.Stats)
	}
}

func TestReconcileHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	discovered := []place.DiscoveredRecord{{ExternalID: "a", Name: "A"}}
	if _, err := Reconcile(ctx, nil, discovered, Options{Workers: 1}); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

func TestReconcileOptionalPhotoRefresh(t *testing.T) {
	t.Parallel()

	canonical := []place.CanonicalRecord{{Slug: "a", Name: "A", PlaceCID: "1", PhotoURL: "https://old.example/p.jpg", Rating: floatPtr(2)}}
	discovered := []place.DiscoveredRecord{{ExternalID: "1", Name: "A", PhotoURL: "https://new.example/p.jpg", Rating: floatPtr(5)}}

	out := mustReconcile(t, canonical, discovered, Options{RefreshFields: []Field{FieldPhotoURL}})
	rec := out.Records[0]
	if rec.PhotoURL != "https://new.example/p.jpg" {
		t.Fatalf("photo should be refreshed, got %q", rec.PhotoURL)
	}
	if *rec.Rating != 5 {
		t.Fatalf("rating must always be refreshed, got %v", *rec.Rating)
	}
}

func TestReconcileRefreshSetCannotBreakFillOnce(t *testing.T) {
	t.Parallel()

	for name, refresh := range map[string][]Field{
		"empty":      {},
		"phone only": {FieldPhone},
	} {
		name, refresh := name, refresh
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			canonical := []place.CanonicalRecord{{Slug: "a", Name: "A", PlaceCID: "cid-1", Phone: "111", Rating: floatPtr(3), ReviewCount: intPtr(10)}}
			discovered := []place.DiscoveredRecord{{ExternalID: "cid-1", Name: "A", Phone: "222", Rating: floatPtr(4.5), ReviewCount: intPtr(12)}}

			out := mustReconcile(t, canonical, discovered, Options{RefreshFields: refresh})
			rec := out.Records[0]
			if rec.Phone != "111" {
				t.Fatalf("phone is fill-once, got %q", rec.Phone)
			}
			if *rec.Rating != 4.5 || *rec.ReviewCount != 12 {
				t.Fatalf("rating and review count must be refreshed, got %v and %v", *rec.Rating, *rec.ReviewCount)
			}
		})
	}
}

func TestParseRefreshField(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"rating", " Review_Count ", "photo_url"} {
		if _, ok := ParseRefreshField(name); !ok {
			t.Fatalf("ParseRefreshField(%q) rejected", name)
		}
	}
	for _, name := range []string{"phone", "website", "graves"} {
		if _, ok := ParseRefreshField(name); ok {
			t.Fatalf("ParseRefreshField(%q) accepted", name)
		}
	}
}

func TestReconcilePlaceIsNotAMunicipality(t *testing.T) {
	t.Parallel()

	canonical := []place.CanonicalRecord{{Slug: "algemene-begraafplaats-beek", Name: "Algemene Begraafplaats", Municipality: "Beek"}}
	discovered := []place.DiscoveredRecord{{ExternalID: "cid-9", Name: "Algemene Begraafplaats", Place: "Beek", Phone: "0314-123"}}

	out := mustReconcile(t, canonical, discovered, Options{})
	if out.Stats.Matched != 0 || len(out.Unmatched) != 1 {
		t.Fatalf("a place-only record must stay unmatched, got %+v", out.Stats)
	}
	if out.Records[0].Phone != "" {
		t.Fatalf("unmatched record changed the canonical set: %+v", out.Records[0])
	}
}
