package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMinConns  int32  `envconfig:"KH_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"KH_DB_MAX_CONNS" default:"8"`

	SiteVariant        string `envconfig:"SITE_VARIANT" default:"nl"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`

	MatchCoordinateThresholdMeters float64 `envconfig:"MATCH_COORDINATE_THRESHOLD_METERS" default:"100"`
	MatchPostalMinSimilarity       float64 `envconfig:"MATCH_POSTAL_MIN_SIMILARITY" default:"0.70"`
	MatchMunicipalityMinSimilarity float64 `envconfig:"MATCH_MUNICIPALITY_MIN_SIMILARITY" default:"0.60"`
	MatchWorkers                   int     `envconfig:"MATCH_WORKERS" default:"0"`
	MatchRefreshFields             string  `envconfig:"MATCH_REFRESH_FIELDS" default:""`

	RedirectLegacyPrefixes string `envconfig:"REDIRECT_LEGACY_PREFIXES" default:"cemetery-,begraafplaats-,kerkhof-,graveyard-,algemene-begraafplaats-"`

	GeocoderEndpoint string        `envconfig:"GEOCODER_ENDPOINT" default:"https://api.pdok.nl/bzk/locatieserver/search/v3_1/free"`
	GeocoderRPS      float64       `envconfig:"GEOCODER_RPS" default:"10"`
	GeocoderTimeout  time.Duration `envconfig:"GEOCODER_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings every command needs. Database settings are
// checked separately by RequireDatabase because the offline batch commands
// run without one.
func (c *Config) Validate() error {
	if c.DBMinConns < 0 {
		return fmt.Errorf("KH_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("KH_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("KH_DB_MIN_CONNS (%d) cannot exceed KH_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	switch strings.ToLower(strings.TrimSpace(c.SiteVariant)) {
	case "nl", "us":
	default:
		return fmt.Errorf("SITE_VARIANT must be nl or us, got %q", c.SiteVariant)
	}
	if c.MatchCoordinateThresholdMeters <= 0 {
		return fmt.Errorf("MATCH_COORDINATE_THRESHOLD_METERS must be > 0")
	}
	if c.MatchPostalMinSimilarity <= 0 || c.MatchPostalMinSimilarity > 1 {
		return fmt.Errorf("MATCH_POSTAL_MIN_SIMILARITY must be in (0, 1]")
	}
	if c.MatchMunicipalityMinSimilarity <= 0 || c.MatchMunicipalityMinSimilarity > 1 {
		return fmt.Errorf("MATCH_MUNICIPALITY_MIN_SIMILARITY must be in (0, 1]")
	}
	if c.MatchMunicipalityMinSimilarity > c.MatchPostalMinSimilarity {
		return fmt.Errorf(
			"MATCH_MUNICIPALITY_MIN_SIMILARITY (%.2f) cannot exceed MATCH_POSTAL_MIN_SIMILARITY (%.2f)",
			c.MatchMunicipalityMinSimilarity,
			c.MatchPostalMinSimilarity,
		)
	}
	if c.MatchWorkers < 0 {
		return fmt.Errorf("MATCH_WORKERS must be >= 0")
	}
	if c.GeocoderRPS <= 0 {
		return fmt.Errorf("GEOCODER_RPS must be > 0")
	}
	if c.GeocoderTimeout <= 0 {
		return fmt.Errorf("GEOCODER_TIMEOUT must be > 0")
	}
	return nil
}

// RequireDatabase reports an error when no database is configured.
func (c *Config) RequireDatabase() error {
	if c == nil || strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.CORSAllowedOrigins)
}

func (c *Config) RedirectLegacyPrefixList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.RedirectLegacyPrefixes)
}

func (c *Config) MatchRefreshFieldList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.MatchRefreshFields)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	return values
}
