package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/kerkhof/internal/cli"
)

func runImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	canonicalPath := fs.String("canonical", "data/cemeteries.json", "Canonical records JSON file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Import timeout")

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

	records, err := readCanonicalFile(*canonicalPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read canonical records: %v\n", err)
		return 1
	}

	pool, err := connectPool(cfg, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	upserted, err := pool.UpsertCemeteries(ctx, records)
	if err != nil {
		logger.Error().Err(err).Str("file", *canonicalPath).Msg("import failed")
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		return 1
	}

	logger.Info().
		Int("records", len(records)).
		Int64("upserted", upserted).
		Str("file", *canonicalPath).
		Msg("canonical records imported")
	fmt.Printf("import records=%d upserted=%d file=%s\n", len(records), upserted, *canonicalPath)
	return 0
}
