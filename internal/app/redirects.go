package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"horse.fit/kerkhof/internal/cli"
	"horse.fit/kerkhof/internal/globaltime"
	"horse.fit/kerkhof/internal/redirect"
)

type redirectBuild struct {
	BuildID     string               `json:"build_id"`
	Site        string               `json:"site"`
	GeneratedAt time.Time            `json:"generated_at"`
	Report      redirect.BuildReport `json:"report"`
}

func runRedirects(args []string) int {
	fs := flag.NewFlagSet("redirects", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	canonicalPath := fs.String("canonical", "data/cemeteries.json", "Canonical records JSON file")
	variantsPath := fs.String("variants", "data/place-variants.json", "Known-variant map JSON file (optional)")
	legacyPath := fs.String("legacy-slugs", "", "Text file with one retired record slug per line (optional)")
	out := fs.String("out", "data/redirects.json", "Output path for the redirect table (- for stdout)")
	reportPath := fs.String("report", "", "Output path for the build report JSON (optional)")
	store := fs.Bool("store", false, "Replace the redirect table in the database")
	timeout := fs.Duration("timeout", 2*time.Minute, "Database timeout when --store is set")

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
	site, err := redirect.SiteByName(cfg.SiteVariant)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid site: %v\n", err)
		return 1
	}

	records, err := readCanonicalFile(*canonicalPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read canonical records: %v\n", err)
		return 1
	}
	variants, err := readVariantsFile(*variantsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read variants: %v\n", err)
		return 1
	}
	legacySlugs, err := readLinesFile(*legacyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read legacy slugs: %v\n", err)
		return 1
	}

	entries, report := redirect.Build(records, variants, redirect.BuildOptions{
		Site:           site,
		LegacyPrefixes: cfg.RedirectLegacyPrefixList(),
		LegacySlugs:    legacySlugs,
	})
	build := redirectBuild{
		BuildID:     uuid.NewString(),
		Site:        site.Name,
		GeneratedAt: globaltime.UTC(),
		Report:      report,
	}

	if err := writeJSONFile(*out, entries); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write redirects: %v\n", err)
		return 1
	}
	if strings.TrimSpace(*reportPath) != "" {
		if err := writeJSONFile(*reportPath, build); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
			return 1
		}
	}

	if *store {
		pool, err := connectPool(cfg, *timeout)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer pool.Close()

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		inserted, err := pool.ReplaceRedirects(ctx, build.BuildID, entries)
		if err != nil {
			logger.Error().Err(err).Str("build_id", build.BuildID).Msg("store redirects failed")
			fmt.Fprintf(os.Stderr, "Failed to store redirects: %v\n", err)
			return 1
		}
		logger.Info().Int64("inserted", inserted).Str("build_id", build.BuildID).Msg("redirect table stored")
	}

	logger.Info().
		Str("build_id", build.BuildID).
		Str("site", build.Site).
		Int("entries", len(entries)).
		Int("skipped_variants", report.SkippedVariants).
		Msg("redirect table built")

	if strings.TrimSpace(*out) != stdoutPath {
		if err := writeMetricTable(os.Stdout, redirectReportRows(report)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render summary: %v\n", err)
			return 1
		}
	}
	return 0
}

func redirectReportRows(report redirect.BuildReport) [][]string {
	return [][]string{
		countRow("entries", report.Entries),
		countRow("variant", report.ByKind[redirect.KindVariant]),
		countRow("prefix", report.ByKind[redirect.KindPrefix]),
		countRow("legacy", report.ByKind[redirect.KindLegacy]),
		countRow("variants_considered", report.VariantsConsidered),
		countRow("variants_already_live", report.VariantsAlreadyLive),
		countRow("skipped_variants", report.SkippedVariants),
		countRow("prefix_collisions", report.PrefixCollisions),
		countRow("legacy_unresolved", report.LegacyUnresolved),
		countRow("duplicates_dropped", report.DuplicatesDropped),
	}
}
