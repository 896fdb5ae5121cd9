package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/kerkhof/internal/config"
	"horse.fit/kerkhof/internal/geocode"
	"horse.fit/kerkhof/internal/match"
	"horse.fit/kerkhof/internal/place"
)

func TestRunExitCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
		want int
	}{
		{name: "no command", args: nil, want: 2},
		{name: "help", args: []string{"help"}, want: 0},
		{name: "unknown command", args: []string{"exhume"}, want: 2},
		{name: "slug without names", args: []string{"slug"}, want: 2},
		{name: "slug help", args: []string{"slug", "-h"}, want: 0},
		{name: "validate bad kind", args: []string{"validate", "--kind", "graves"}, want: 2},
		{name: "reconcile negative workers", args: []string{"reconcile", "--workers", "-1"}, want: 2},
		{name: "serve bad port", args: []string{"serve", "--port", "70000"}, want: 2},
		{name: "unknown flag", args: []string{"import", "--nope"}, want: 2},
		{name: "stats bad format", args: []string{"stats", "--format", "csv"}, want: 2},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Run(tc.args); got != tc.want {
				t.Fatalf("Run(%v) = %d, want %d", tc.args, got, tc.want)
			}
		})
	}
}

func TestSlugLines(t *testing.T) {
	t.Parallel()

	lines := slugLines([]string{"Begraafplaats Sint-Barbara", "’s-Hertogenbosch"}, "")
	if lines[0] != "Begraafplaats Sint-Barbara\tbegraafplaats-sint-barbara" {
		t.Fatalf("unexpected line %q", lines[0])
	}
	if lines[1] != "’s-Hertogenbosch\ts-hertogenbosch" {
		t.Fatalf("unexpected line %q", lines[1])
	}

	withContext := slugLines([]string{"Algemene Begraafplaats"}, "Ede")
	if withContext[0] != "Algemene Begraafplaats\talgemene-begraafplaats-ede" {
		t.Fatalf("unexpected line %q", withContext[0])
	}
}

func TestCollectJSONFilesRecursive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.json"), `[]`)
	mustWriteFile(t, filepath.Join(root, "b.txt"), `x`)
	mustWriteFile(t, filepath.Join(root, ".hidden.json"), `[]`)
	mustWriteFile(t, filepath.Join(root, "nested", "c.JSON"), `[]`)
	mustWriteFile(t, filepath.Join(root, ".cache", "d.json"), `[]`)

	files, err := collectJSONFiles(root, true)
	if err != nil {
		t.Fatalf("collectJSONFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 json files, got %d (%v)", len(files), files)
	}
}

func TestCollectJSONFilesNonRecursive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.json"), `[]`)
	mustWriteFile(t, filepath.Join(root, "nested", "c.json"), `[]`)

	files, err := collectJSONFiles(root, false)
	if err != nil {
		t.Fatalf("collectJSONFiles failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 json file, got %d (%v)", len(files), files)
	}

	if _, err := collectJSONFiles(filepath.Join(root, "a.json"), false); err == nil {
		t.Fatalf("expected an error for a file root")
	}
}

func TestValidateCollection(t *testing.T) {
	t.Parallel()

	valid, rejected, err := validateCollection(kindDiscovered, []byte(`[{"external_id":"zv-1","name":"Zorgvlied"},{"external_id":"zv-2","name":""},{"external_id":"ok-1","name":"Oud Kerkhof","latitude":52.1}]`))
	if err != nil {
		t.Fatalf("validateCollection() error = %v", err)
	}
	if valid != 1 || len(rejected) != 2 {
		t.Fatalf("valid=%d rejected=%d, want 1 and 2", valid, len(rejected))
	}
	if rejected[0].Index != 1 || rejected[1].Index != 2 {
		t.Fatalf("unexpected rejection indexes %+v", rejected)
	}

	if _, _, err := validateCollection(kindCanonical, []byte(`{"slug":"x"}`)); err == nil {
		t.Fatalf("expected a non-array document to fail")
	}
}

const reconcileDiscovered = `[
  {"external_id": "cid-1", "name": "Begraafplaats Zorgvlied", "phone": "020 123 4567"},
  {"external_id": "cid-2"},
  {"external_id": "cid-9", "name": "Nergens", "municipality": "Nowhere"}
]`

func reconcileCanonical() []place.CanonicalRecord {
	return []place.CanonicalRecord{
		{Slug: "zorgvlied", Name: "Zorgvlied", Municipality: "Amsterdam", PlaceCID: "cid-1"},
		{Slug: "oud-kerkhof-ede", Name: "Oud Kerkhof", Municipality: "Ede"},
	}
}

func TestReconcileFoldsSchemaRejections(t *testing.T) {
	t.Parallel()

	canonical := reconcileCanonical()
	report, records, err := reconcile(context.Background(), zerolog.Nop(), match.Options{Workers: 2}, canonical, []byte(reconcileDiscovered), nil)
	if err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}

	if len(report.Results) != 1 || report.Results[0].DiscoveredIndex != 0 || report.Results[0].CanonicalSlug != "zorgvlied" {
		t.Fatalf("unexpected results %+v", report.Results)
	}
	if len(report.Quarantined) != 1 || report.Quarantined[0].DiscoveredIndex != 1 {
		t.Fatalf("unexpected quarantine %+v", report.Quarantined)
	}
	if len(report.Unmatched) != 1 || report.Unmatched[0].DiscoveredIndex != 2 || report.Unmatched[0].ExternalID != "cid-9" {
		t.Fatalf("unexpected unmatched %+v", report.Unmatched)
	}
	if report.Stats.TotalDiscovered != 3 || report.Stats.Quarantined != 1 || report.Stats.Matched != 1 {
		t.Fatalf("unexpected stats %+v", report.Stats)
	}
	if report.RunID == "" || report.FinishedAt.Before(report.StartedAt) {
		t.Fatalf("unexpected run header %+v", report)
	}
	if report.Enrichment != nil {
		t.Fatalf("expected no enrichment without a geocoder")
	}

	if records[0].Phone != "020 123 4567" {
		t.Fatalf("expected phone to be filled, got %+v", records[0])
	}
	if canonical[0].Phone != "" {
		t.Fatalf("canonical input was modified")
	}
}

type fakeEnricher struct {
	calls int
}

func (f *fakeEnricher) FillMunicipalities(_ context.Context, records []place.DiscoveredRecord) (geocode.EnrichReport, error) {
	f.calls++
	report := geocode.EnrichReport{}
	for i := range records {
		if records[i].Municipality == "" {
			report.Missing++
		}
	}
	return report, nil
}

func TestReconcileRunsEnricherOnValidRecords(t *testing.T) {
	t.Parallel()

	enricher := &fakeEnricher{}
	report, _, err := reconcile(context.Background(), zerolog.Nop(), match.Options{}, reconcileCanonical(), []byte(reconcileDiscovered), enricher)
	if err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}
	if enricher.calls != 1 {
		t.Fatalf("expected one enrichment call, got %d", enricher.calls)
	}
	if report.Enrichment == nil || report.Enrichment.Missing != 1 {
		t.Fatalf("unexpected enrichment report %+v", report.Enrichment)
	}
}

func TestReconcileRejectsNonArray(t *testing.T) {
	t.Parallel()

	if _, _, err := reconcile(context.Background(), zerolog.Nop(), match.Options{}, nil, []byte(`{"name":"x"}`), nil); err == nil {
		t.Fatalf("expected an error for a non-array document")
	}
}

type fakeReconcileStore struct {
	upserted []place.CanonicalRecord
	runUUID  string
	outcome  *match.Outcome
	runErr   error
}

func (f *fakeReconcileStore) InsertReconcileRun(_ context.Context, runUUID string, _, _ time.Time, outcome *match.Outcome) (int64, error) {
	if f.runErr != nil {
		return 0, f.runErr
	}
	f.runUUID = runUUID
	f.outcome = outcome
	return 7, nil
}

func (f *fakeReconcileStore) UpsertCemeteries(_ context.Context, records []place.CanonicalRecord) (int64, error) {
	f.upserted = records
	return int64(len(records)), nil
}

func TestStoreReconcileRun(t *testing.T) {
	t.Parallel()

	report, records, err := reconcile(context.Background(), zerolog.Nop(), match.Options{}, reconcileCanonical(), []byte(reconcileDiscovered), nil)
	if err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}

	store := &fakeReconcileStore{}
	if err := storeReconcileRun(context.Background(), store, report, records); err != nil {
		t.Fatalf("storeReconcileRun() error = %v", err)
	}
	if store.runUUID != report.RunID || len(store.upserted) != 2 {
		t.Fatalf("unexpected store state %+v", store)
	}
	if store.outcome.Stats.Matched != 1 || len(store.outcome.Results) != 1 {
		t.Fatalf("unexpected stored outcome %+v", store.outcome)
	}

	failing := &fakeReconcileStore{runErr: errors.New("deadlock detected")}
	if err := storeReconcileRun(context.Background(), failing, report, records); err == nil {
		t.Fatalf("expected the insert error to surface")
	}
}

func TestRenderTablePlain(t *testing.T) {
	t.Parallel()

	out := renderTable([]string{"metric", "value"}, [][]string{countRow("matched", 3), {"unmatched"}}, []columnAlignment{alignLeft, alignRight}, false)
	for _, want := range []string{"METRIC", "matched", "3", "unmatched"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "╭") {
		t.Fatalf("plain table used rounded borders:\n%s", out)
	}
	if renderTable(nil, nil, nil, false) != "" {
		t.Fatalf("expected empty output without headers")
	}
}

func TestReconcileStatsRowsCoverEveryMatchType(t *testing.T) {
	t.Parallel()

	rows := reconcileStatsRows(match.Stats{MatchedByType: map[match.MatchType]int{match.MatchCoordinateProximity: 4}})
	found := false
	for _, row := range rows {
		if row[0] == "matched_coordinate_proximity" {
			found = row[1] == "4"
		}
	}
	if !found {
		t.Fatalf("expected a coordinate proximity row, got %v", rows)
	}
}

func TestMergeVariantsPrefersCurated(t *testing.T) {
	t.Parallel()

	merged := mergeVariants(
		place.Variants{"Nuth": {Municipality: "Beekdaelen"}, "Sneek": {Municipality: "Súdwest-Fryslân"}},
		place.Variants{"Nuth": {Municipality: "Beekdaelen", Province: "Limburg"}},
	)
	if len(merged) != 2 || merged["Nuth"].Province != "Limburg" {
		t.Fatalf("unexpected merge %+v", merged)
	}
}

func TestWriteJSONFileAndReadLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "nested", "redirects.json")
	if err := writeJSONFile(out, map[string]string{"source": "/gemeente/den-bosch?a=1&b=2"}); err != nil {
		t.Fatalf("writeJSONFile() error = %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(raw), "a=1&b=2") {
		t.Fatalf("expected unescaped ampersand, got %s", raw)
	}

	legacy := filepath.Join(dir, "legacy.txt")
	mustWriteFile(t, legacy, "# retired slugs\nkerkhof-ede\n\n  begraafplaats-nuth  \n")
	lines, err := readLinesFile(legacy)
	if err != nil {
		t.Fatalf("readLinesFile() error = %v", err)
	}
	if len(lines) != 2 || lines[1] != "begraafplaats-nuth" {
		t.Fatalf("unexpected lines %v", lines)
	}
}

func TestReadCanonicalFileRejectsInvalidRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	mustWriteFile(t, good, `[{"slug":"zorgvlied","name":"Zorgvlied","municipality":"Amsterdam","founded":1892}]`)
	records, err := readCanonicalFile(good)
	if err != nil {
		t.Fatalf("readCanonicalFile() error = %v", err)
	}
	if len(records) != 1 || records[0].Extra["founded"] == nil {
		t.Fatalf("unexpected records %+v", records)
	}

	bad := filepath.Join(dir, "bad.json")
	mustWriteFile(t, bad, `[{"slug":"zorgvlied","name":"Zorgvlied","municipality":"Amsterdam"},{"slug":"zorgvlied","name":"Dubbel","municipality":"Amsterdam"}]`)
	if _, err := readCanonicalFile(bad); err == nil {
		t.Fatalf("expected duplicate slugs to fail the file")
	}
}

func TestMatchOptions(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		MatchCoordinateThresholdMeters: 150,
		MatchPostalMinSimilarity:       0.7,
		MatchMunicipalityMinSimilarity: 0.6,
		MatchWorkers:                   3,
		MatchRefreshFields:             "rating, photo_url",
	}
	opts, err := matchOptions(cfg, 0)
	if err != nil {
		t.Fatalf("matchOptions() error = %v", err)
	}
	if opts.Workers != 3 || opts.CoordinateThresholdMeters != 150 || len(opts.RefreshFields) != 2 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts, _ := matchOptions(cfg, 8); opts.Workers != 8 {
		t.Fatalf("--workers should override MATCH_WORKERS, got %d", opts.Workers)
	}

	cfg.MatchRefreshFields = ""
	if opts, err := matchOptions(cfg, 0); err != nil || len(opts.RefreshFields) != 0 {
		t.Fatalf("an empty refresh list adds no optional fields, got %v, %v", opts.RefreshFields, err)
	}

	for _, fields := range []string{"rating,graves", "phone", "photo_url,website"} {
		cfg.MatchRefreshFields = fields
		if _, err := matchOptions(cfg, 0); err == nil {
			t.Fatalf("expected MATCH_REFRESH_FIELDS=%q to fail", fields)
		}
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestParseOutputFormat(t *testing.T) {
	t.Parallel()

	if got, err := parseOutputFormat(" JSON ", outputFormatTable); err != nil || got != outputFormatJSON {
		t.Fatalf("parseOutputFormat(JSON) = %q, %v", got, err)
	}
	if got, err := parseOutputFormat("", outputFormatTable); err != nil || got != outputFormatTable {
		t.Fatalf("parseOutputFormat(empty) = %q, %v", got, err)
	}
	if _, err := parseOutputFormat("csv", outputFormatTable); err == nil {
		t.Fatalf("expected csv to be rejected")
	}
}
