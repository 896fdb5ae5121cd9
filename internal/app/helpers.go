package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/kerkhof/internal/cli"
	"horse.fit/kerkhof/internal/config"
	"horse.fit/kerkhof/internal/db"
	"horse.fit/kerkhof/internal/logging"
	"horse.fit/kerkhof/internal/match"
	"horse.fit/kerkhof/internal/place"
	recordschema "horse.fit/kerkhof/schema"
)

const stdoutPath = "-"

// loadRuntime overlays the env file and returns the validated config with a
// logger built from it.
func loadRuntime(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func connectPool(cfg *config.Config, timeout time.Duration) (*db.Pool, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

func readInputFile(path string) ([]byte, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("input path is empty")
	}
	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", trimmed, err)
	}
	return raw, nil
}

// readCanonicalFile loads and validates a canonical collection. Any rejected
// record fails the whole file: the canonical set is the source of truth and
// is never published partially.
func readCanonicalFile(path string) ([]place.CanonicalRecord, error) {
	raw, err := readInputFile(path)
	if err != nil {
		return nil, err
	}
	records, rejected, err := recordschema.ValidateCanonicalCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(rejected) > 0 {
		for _, rejection := range rejected {
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", path, rejection)
		}
		return nil, fmt.Errorf("%s: %d invalid canonical records", path, len(rejected))
	}
	return records, nil
}

func readVariantsFile(path string) (place.Variants, error) {
	if strings.TrimSpace(path) == "" {
		return place.Variants{}, nil
	}
	raw, err := readInputFile(path)
	if err != nil {
		return nil, err
	}
	return place.DecodeVariants(raw)
}

// readLinesFile returns the non-empty, non-comment lines of a text file.
func readLinesFile(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := readInputFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, trimmed)
	}
	return lines, nil
}

// writeJSONFile writes value as indented JSON. The "-" path writes to stdout.
func writeJSONFile(path string, value any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == stdoutPath {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}
	if dir := filepath.Dir(trimmed); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(trimmed, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", trimmed, err)
	}
	return nil
}

func matchOptions(cfg *config.Config, workers int) (match.Options, error) {
	opts := match.Options{
		CoordinateThresholdMeters: cfg.MatchCoordinateThresholdMeters,
		PostalMinSimilarity:       cfg.MatchPostalMinSimilarity,
		MunicipalityMinSimilarity: cfg.MatchMunicipalityMinSimilarity,
		Workers:                   cfg.MatchWorkers,
	}
	if workers > 0 {
		opts.Workers = workers
	}

	names := cfg.MatchRefreshFieldList()
	opts.RefreshFields = make([]match.Field, 0, len(names))
	for _, name := range names {
		field, ok := match.ParseRefreshField(name)
		if !ok {
			return match.Options{}, fmt.Errorf("MATCH_REFRESH_FIELDS: field %q cannot be refreshed", name)
		}
		opts.RefreshFields = append(opts.RefreshFields, field)
	}
	return opts, nil
}
