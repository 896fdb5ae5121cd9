package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/kerkhof/internal/db"
	"horse.fit/kerkhof/internal/globaltime"
	"horse.fit/kerkhof/internal/place"
	"horse.fit/kerkhof/internal/slug"
)

var errCemeteryNotFound = errors.New("cemetery not found")

type redirectSummary struct {
	Site    string `json:"site"`
	Entries int    `json:"entries"`
	Dropped int    `json:"dropped"`
}

type statsResponse struct {
	Store     *db.StoreStats  `json:"store,omitempty"`
	Redirects redirectSummary `json:"redirects"`
}

type resolveResponse struct {
	Path        string `json:"path"`
	Matched     bool   `json:"matched"`
	Destination string `json:"destination,omitempty"`
	Status      int    `json:"status,omitempty"`
	Rule        string `json:"rule,omitempty"`
}

func (s *Server) redirectSummary() redirectSummary {
	return redirectSummary{
		Site:    s.table.Site().Name,
		Entries: s.table.Len(),
		Dropped: s.table.Dropped(),
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	database := "disabled"
	if s.store != nil {
		database = "ok"
		if err := s.store.Ping(c.Request().Context()); err != nil {
			s.logger.Warn().Err(err).Msg("database ping failed")
			database = "unavailable"
		}
	}
	return success(c, map[string]any{
		"service":   "kerkhof",
		"time":      globaltime.UTC(),
		"database":  database,
		"redirects": s.redirectSummary(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	resp := statsResponse{Redirects: s.redirectSummary()}
	if s.store != nil {
		stats, err := s.store.QueryStats(c.Request().Context())
		if err != nil {
			s.logger.Error().Err(err).Msg("query stats failed")
			return internalError(c, "Failed to load stats")
		}
		resp.Store = stats
	}
	return success(c, resp)
}

func (s *Server) handleResolveRedirect(c echo.Context) error {
	requestPath := strings.TrimSpace(c.QueryParam("path"))
	if requestPath == "" {
		return failValidation(c, map[string]string{"path": "is required"})
	}

	resp := resolveResponse{Path: requestPath}
	if res, ok := s.table.Resolve(requestPath); ok {
		resp.Matched = true
		resp.Destination = res.Destination
		resp.Rule = string(res.Rule)
		resp.Status = http.StatusMovedPermanently
	}
	return success(c, resp)
}

func (s *Server) handleCemetery(c echo.Context) error {
	if s.store == nil {
		return unavailable(c, "Database not configured")
	}

	requested := strings.TrimSpace(c.Param("slug"))
	normalized := slug.Normalize(requested)
	if normalized == "" {
		return failValidation(c, map[string]string{"slug": "is required"})
	}

	record, err := s.fetchCemetery(c.Request().Context(), normalized)
	if err != nil {
		if errors.Is(err, errCemeteryNotFound) {
			return failNotFound(c, "Cemetery not found")
		}
		s.logger.Error().Err(err).Str("slug", normalized).Msg("query cemetery failed")
		return internalError(c, "Failed to load cemetery")
	}
	return success(c, record)
}

func (s *Server) fetchCemetery(ctx context.Context, slugValue string) (*place.CanonicalRecord, error) {
	record, err := s.store.GetCemeteryBySlug(ctx, slugValue)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, errCemeteryNotFound
		}
		return nil, err
	}
	return record, nil
}

func (s *Server) handleReconcileRuns(c echo.Context) error {
	if s.store == nil {
		return unavailable(c, "Database not configured")
	}

	limit, err := parsePositiveInt(c.QueryParam("limit"), 20, 1, 200)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	runs, err := s.store.ListReconcileRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("query reconcile runs failed")
		return internalError(c, "Failed to load reconcile runs")
	}
	return success(c, map[string]any{
		"items": runs,
		"limit": limit,
	})
}
