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

	"horse.fit/kerkhof/internal/cli"
	"horse.fit/kerkhof/internal/geocode"
	"horse.fit/kerkhof/internal/place"
)

func runGeocode(args []string) int {
	fs := flag.NewFlagSet("geocode", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	in := fs.String("in", "data/cemeteries.json", "Canonical records JSON file")
	out := fs.String("out", "data/place-variants.json", "Output path for the known-variant map (- for stdout)")
	merge := fs.String("merge", "", "Existing variant map whose entries take precedence over lookups")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	records, err := readCanonicalFile(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read canonical records: %v\n", err)
		return 1
	}
	curated, err := readVariantsFile(*merge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read variants: %v\n", err)
		return 1
	}

	client, err := geocode.NewClient(logger, geocode.Options{
		Endpoint:          cfg.GeocoderEndpoint,
		RequestsPerSecond: cfg.GeocoderRPS,
		Timeout:           cfg.GeocoderTimeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create geocoder: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	variants, report, err := client.BuildVariants(ctx, records)
	if err != nil {
		logger.Error().Err(err).Msg("geocode aborted")
		fmt.Fprintf(os.Stderr, "Geocode aborted: %v\n", err)
		return 1
	}
	merged := mergeVariants(variants, curated)

	if err := writeJSONFile(*out, merged); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write variants: %v\n", err)
		return 1
	}

	logger.Info().
		Int("names", report.Names).
		Int("mapped", report.Mapped).
		Int("not_found", len(report.NotFound)).
		Int("failed", len(report.Failed)).
		Msg("geocode finished")

	if strings.TrimSpace(*out) != stdoutPath {
		rows := [][]string{
			countRow("names", report.Names),
			countRow("mapped", report.Mapped),
			countRow("curated", len(curated)),
			countRow("not_found", len(report.NotFound)),
			countRow("failed", len(report.Failed)),
			countRow("written", len(merged)),
		}
		if err := writeMetricTable(os.Stdout, rows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render summary: %v\n", err)
			return 1
		}
	}
	if len(report.Failed) > 0 {
		return 1
	}
	return 0
}

// mergeVariants overlays curated entries on the looked-up ones.
func mergeVariants(lookedUp, curated place.Variants) place.Variants {
	out := make(place.Variants, len(lookedUp)+len(curated))
	for name, variant := range lookedUp {
		out[name] = variant
	}
	for name, variant := range curated {
		out[name] = variant
	}
	return out
}
