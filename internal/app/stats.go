package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/kerkhof/internal/cli"
	"horse.fit/kerkhof/internal/db"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	runs := fs.Int("runs", 5, "Number of recent reconcile runs to list")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
		return 2
	}
	if *runs < 1 || *runs > 200 {
		fmt.Fprintln(os.Stderr, "--runs must be between 1 and 200")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, _, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
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

	stats, err := pool.QueryStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query stats: %v\n", err)
		return 1
	}
	recent, err := pool.ListReconcileRuns(ctx, *runs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query reconcile runs: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		payload := map[string]any{"store": stats, "reconcile_runs": recent}
		if err := writeJSONFile(stdoutPath, payload); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if err := writeMetricTable(os.Stdout, storeStatsRows(stats)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render stats table: %v\n", err)
		return 1
	}
	if len(recent) == 0 {
		return 0
	}

	fmt.Println()
	fmt.Println(renderTable(
		[]string{"run", "finished", "discovered", "matched", "unmatched", "quarantined", "updated"},
		runRows(recent),
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
		isTerminal(os.Stdout),
	))
	return 0
}

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func storeStatsRows(stats *db.StoreStats) [][]string {
	lastRun := ""
	if stats.LastRunAt != nil {
		lastRun = stats.LastRunAt.UTC().Format(time.RFC3339)
	}
	return [][]string{
		{"cemeteries", fmt.Sprintf("%d", stats.Cemeteries)},
		{"municipalities", fmt.Sprintf("%d", stats.Municipalities)},
		{"redirects", fmt.Sprintf("%d", stats.Redirects)},
		{"reconcile_runs", fmt.Sprintf("%d", stats.ReconcileRuns)},
		{"match_events", fmt.Sprintf("%d", stats.MatchEvents)},
		{"last_run_at", lastRun},
	}
}

func runRows(runs []db.RunSummary) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			fmt.Sprintf("%d", run.RunID),
			run.FinishedAt.UTC().Format(time.RFC3339),
			fmt.Sprintf("%d", run.TotalDiscovered),
			fmt.Sprintf("%d", run.Matched),
			fmt.Sprintf("%d", run.Unmatched),
			fmt.Sprintf("%d", run.Quarantined),
			fmt.Sprintf("%d", run.RecordsUpdated),
		})
	}
	return rows
}
