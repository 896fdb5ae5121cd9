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

	"github.com/rs/zerolog"

	"horse.fit/kerkhof/internal/cli"
	"horse.fit/kerkhof/internal/db"
	"horse.fit/kerkhof/internal/httpapi"
	"horse.fit/kerkhof/internal/redirect"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8090, "HTTP port")
	redirectsPath := fs.String("redirects", "", "Redirect table JSON file; the database table is used when empty")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
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

	// Without a database the server still resolves redirects from a file.
	var pool *db.Pool
	if cfg.RequireDatabase() == nil {
		pool, err = connectPool(cfg, 10*time.Second)
		if err != nil {
			logger.Error().Err(err).Msg("serve failed to connect to database")
			fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
			return 1
		}
		defer pool.Close()
	} else if strings.TrimSpace(*redirectsPath) == "" {
		fmt.Fprintln(os.Stderr, "serve needs DATABASE_URL or --redirects")
		return 2
	}

	table, err := loadRedirectTable(pool, *redirectsPath, site, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load redirects: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store httpapi.Store
	if pool != nil {
		store = pool
	}
	srv := httpapi.NewServer(store, table, logger, httpapi.Options{
		Host:               *host,
		Port:               *port,
		ReadTimeout:        *readTimeout,
		WriteTimeout:       *writeTimeout,
		ShutdownTimeout:    *shutdownTimeout,
		CORSAllowedOrigins: cfg.CORSAllowedOriginsList(),
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}

// loadRedirectTable prefers the file when one is given, otherwise the stored
// table.
func loadRedirectTable(pool *db.Pool, path string, site redirect.Site, logger zerolog.Logger) (*redirect.Table, error) {
	var (
		entries []redirect.Entry
		source  string
	)
	if strings.TrimSpace(path) != "" {
		raw, err := readInputFile(path)
		if err != nil {
			return nil, err
		}
		entries, err = redirect.DecodeEntries(raw)
		if err != nil {
			return nil, err
		}
		source = path
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		var err error
		entries, err = pool.ListRedirects(ctx)
		if err != nil {
			return nil, err
		}
		source = "database"
	}

	table := redirect.NewTable(entries, site)
	logger.Info().
		Str("source", source).
		Str("site", site.Name).
		Int("entries", table.Len()).
		Int("dropped_cycles", table.Dropped()).
		Msg("redirect table loaded")
	return table, nil
}
