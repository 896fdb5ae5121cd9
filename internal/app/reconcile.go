package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/kerkhof/internal/cli"
	"horse.fit/kerkhof/internal/geocode"
	"horse.fit/kerkhof/internal/globaltime"
	"horse.fit/kerkhof/internal/match"
	"horse.fit/kerkhof/internal/place"
	recordschema "horse.fit/kerkhof/schema"
)

type reconcileReport struct {
	RunID       string                `json:"run_id"`
	StartedAt   time.Time             `json:"started_at"`
	FinishedAt  time.Time             `json:"finished_at"`
	Enrichment  *geocode.EnrichReport `json:"enrichment,omitempty"`
	Stats       match.Stats           `json:"stats"`
	Results     []match.Result        `json:"results"`
	Unmatched   []match.Unmatched     `json:"unmatched"`
	Quarantined []match.Quarantined   `json:"quarantined"`
}

func runReconcile(args []string) int {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	canonicalPath := fs.String("canonical", "data/cemeteries.json", "Canonical records JSON file")
	fromDB := fs.Bool("from-db", false, "Read the canonical set from the database instead of --canonical")
	discoveredPath := fs.String("discovered", "data/discovered.json", "Discovered records JSON file")
	out := fs.String("out", "data/cemeteries.json", "Output path for the updated canonical records (- for stdout)")
	reportPath := fs.String("report", "", "Output path for the run report JSON (optional)")
	workers := fs.Int("workers", 0, "Matching workers (0 uses MATCH_WORKERS or GOMAXPROCS)")
	geocodeMissing := fs.Bool("geocode-missing", false, "Look up missing municipalities by postcode before matching")
	store := fs.Bool("store", false, "Store the run, its match events and the updated records in the database")
	timeout := fs.Duration("timeout", 10*time.Minute, "Overall command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *workers < 0 {
		fmt.Fprintln(os.Stderr, "--workers must be >= 0")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	opts, err := matchOptions(cfg, *workers)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	needsDB := *store || *fromDB
	var canonical []place.CanonicalRecord
	var persist reconcileStore
	if needsDB {
		pool, err := connectPool(cfg, *timeout)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer pool.Close()
		persist = pool

		if *fromDB {
			canonical, err = pool.ListCemeteries(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load canonical records: %v\n", err)
				return 1
			}
		}
	}
	if !*fromDB {
		canonical, err = readCanonicalFile(*canonicalPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read canonical records: %v\n", err)
			return 1
		}
	}

	rawDiscovered, err := readInputFile(*discoveredPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read discovered records: %v\n", err)
		return 1
	}

	var enrich recordEnricher
	if *geocodeMissing {
		client, err := geocode.NewClient(logger, geocode.Options{
			Endpoint:          cfg.GeocoderEndpoint,
			RequestsPerSecond: cfg.GeocoderRPS,
			Timeout:           cfg.GeocoderTimeout,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create geocoder: %v\n", err)
			return 1
		}
		enrich = client
	}

	report, records, err := reconcile(ctx, logger, opts, canonical, rawDiscovered, enrich)
	if err != nil {
		logger.Error().Err(err).Msg("reconcile failed")
		fmt.Fprintf(os.Stderr, "Reconcile failed: %v\n", err)
		return 1
	}

	if err := writeJSONFile(*out, records); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write canonical records: %v\n", err)
		return 1
	}
	if strings.TrimSpace(*reportPath) != "" {
		if err := writeJSONFile(*reportPath, report); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
			return 1
		}
	}

	if persist != nil && *store {
		if err := storeReconcileRun(ctx, persist, report, records); err != nil {
			logger.Error().Err(err).Str("run_id", report.RunID).Msg("store reconcile run failed")
			fmt.Fprintf(os.Stderr, "Failed to store reconcile run: %v\n", err)
			return 1
		}
	}

	logger.Info().
		Str("run_id", report.RunID).
		Int("matched", report.Stats.Matched).
		Int("unmatched", report.Stats.Unmatched).
		Int("quarantined", report.Stats.Quarantined).
		Int("tie_breaks", report.Stats.TieBreaks).
		Int("records_updated", report.Stats.RecordsUpdated).
		Msg("reconcile finished")

	if strings.TrimSpace(*out) != stdoutPath {
		if err := writeMetricTable(os.Stdout, reconcileStatsRows(report.Stats)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render summary: %v\n", err)
			return 1
		}
	}
	return 0
}

type recordEnricher interface {
	FillMunicipalities(ctx context.Context, records []place.DiscoveredRecord) (geocode.EnrichReport, error)
}

type reconcileStore interface {
	InsertReconcileRun(ctx context.Context, runUUID string, startedAt, finishedAt time.Time, outcome *match.Outcome) (int64, error)
	UpsertCemeteries(ctx context.Context, records []place.CanonicalRecord) (int64, error)
}

// reconcile validates the discovered document, matches the valid records and
// folds schema rejections into the outcome as quarantined entries. All
// discovered indexes in the report refer to positions in rawDiscovered.
func reconcile(
	ctx context.Context,
	logger zerolog.Logger,
	opts match.Options,
	canonical []place.CanonicalRecord,
	rawDiscovered []byte,
	enrich recordEnricher,
) (*reconcileReport, []place.CanonicalRecord, error) {
	batch, err := recordschema.ValidateDiscoveredCollection(rawDiscovered)
	if err != nil {
		return nil, nil, fmt.Errorf("validate discovered records: %w", err)
	}
	for _, rejection := range batch.Rejected {
		logger.Warn().Int("index", rejection.Index).Err(rejection.Err).Msg("discovered record quarantined")
	}

	report := &reconcileReport{
		RunID:     uuid.NewString(),
		StartedAt: globaltime.UTC(),
	}

	if enrich != nil {
		enrichReport, err := enrich.FillMunicipalities(ctx, batch.Records)
		if err != nil {
			return nil, nil, fmt.Errorf("fill municipalities: %w", err)
		}
		report.Enrichment = &enrichReport
	}

	outcome, err := match.NewMatcher(logger, opts).Reconcile(ctx, canonical, batch.Records)
	if err != nil {
		return nil, nil, err
	}
	outcome.RemapIndexes(batch.Indexes)

	quarantined := make([]match.Quarantined, 0, len(batch.Rejected))
	for _, rejection := range batch.Rejected {
		quarantined = append(quarantined, match.Quarantined{
			DiscoveredIndex: rejection.Index,
			Reason:          rejection.Err.Error(),
		})
	}
	outcome.AddQuarantined(quarantined...)

	report.FinishedAt = globaltime.UTC()
	report.Stats = outcome.Stats
	report.Results = outcome.Results
	report.Unmatched = outcome.Unmatched
	report.Quarantined = outcome.Quarantined
	return report, outcome.Records, nil
}

func storeReconcileRun(ctx context.Context, persist reconcileStore, report *reconcileReport, records []place.CanonicalRecord) error {
	outcome := &match.Outcome{
		Records:     records,
		Results:     report.Results,
		Unmatched:   report.Unmatched,
		Quarantined: report.Quarantined,
		Stats:       report.Stats,
	}
	if _, err := persist.UpsertCemeteries(ctx, records); err != nil {
		return err
	}
	if _, err := persist.InsertReconcileRun(ctx, report.RunID, report.StartedAt, report.FinishedAt, outcome); err != nil {
		return err
	}
	return nil
}

func reconcileStatsRows(stats match.Stats) [][]string {
	rows := [][]string{
		countRow("canonical", stats.TotalCanonical),
		countRow("discovered", stats.TotalDiscovered),
		countRow("quarantined", stats.Quarantined),
		countRow("matched", stats.Matched),
	}
	for _, matchType := range match.AllMatchTypes {
		rows = append(rows, countRow("matched_"+strings.ReplaceAll(string(matchType), "-", "_"), stats.MatchedByType[matchType]))
	}
	rows = append(rows,
		countRow("unmatched", stats.Unmatched),
		countRow("tie_breaks", stats.TieBreaks),
		countRow("repeat_matches", stats.RepeatMatches),
		countRow("records_updated", stats.RecordsUpdated),
	)
	return rows
}
