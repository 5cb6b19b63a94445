// Package api serves the dashboard pull contract: station state, recent
// events and cumulative counts, polled by the presentation layer.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gocache "github.com/patrickmn/go-cache"

	"github.com/projectsentinel/sentinel-go/internal/conf"
	"github.com/projectsentinel/sentinel-go/internal/correlator"
	"github.com/projectsentinel/sentinel-go/internal/datastore"
	"github.com/projectsentinel/sentinel-go/internal/emitter"
	"github.com/projectsentinel/sentinel-go/internal/logging"
)

const (
	dashboardCacheKey    = "dashboard"
	dashboardCacheTTL    = 2 * time.Second
	dashboardRecentLimit = 10
	defaultEventLimit    = 50
	maxEventLimit        = 500
)

// Server exposes the dashboard API over HTTP. It only reads pipeline
// state; nothing it serves can influence detection outcomes.
type Server struct {
	echo     *echo.Echo
	settings conf.WebServerSettings
	store    *emitter.Store
	registry *correlator.Registry
	manager  *correlator.Manager
	db       *datastore.Store // nil when the SQLite sink is disabled
	cache    *gocache.Cache
	logger   *slog.Logger
}

func New(settings conf.WebServerSettings, store *emitter.Store, registry *correlator.Registry, manager *correlator.Manager, db *datastore.Store) *Server {
	s := &Server{
		settings: settings,
		store:    store,
		registry: registry,
		manager:  manager,
		db:       db,
		cache:    gocache.New(dashboardCacheTTL, time.Minute),
		logger:   logging.ForService("api"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/healthz", s.handleHealth)
	v1 := e.Group("/api/v1")
	v1.GET("/healthz", s.handleHealth)
	v1.GET("/dashboard", s.handleDashboard)
	v1.GET("/events", s.handleEvents)
	v1.GET("/stations", s.handleStations)

	s.echo = e
	return s
}

// Start serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutdownCtx)
	}()

	s.logger.Info("dashboard API listening", "port", s.settings.Port)
	if err := s.echo.Start(":" + s.settings.Port); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Dashboard is the aggregate snapshot the presentation layer polls.
type Dashboard struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Stations    []correlator.Station `json:"stations"`
	EventCounts map[string]int       `json:"event_counts"`
	TotalEvents int                  `json:"total_events"`
	Recent      []json.RawMessage    `json:"recent_events"`
	Pipeline    correlator.Stats     `json:"pipeline"`
}

func (s *Server) handleDashboard(c echo.Context) error {
	if cached, ok := s.cache.Get(dashboardCacheKey); ok {
		return c.JSON(http.StatusOK, cached)
	}

	d := &Dashboard{
		GeneratedAt: time.Now().UTC(),
		Stations:    s.registry.Snapshot(),
		EventCounts: s.store.Counts(),
		TotalEvents: s.store.Total(),
		Recent:      renderEvents(s.store.Recent(dashboardRecentLimit)),
		Pipeline:    s.manager.Stats(),
	}
	s.cache.Set(dashboardCacheKey, d, gocache.DefaultExpiration)
	return c.JSON(http.StatusOK, d)
}

func (s *Server) handleEvents(c echo.Context) error {
	limit := defaultEventLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	// Prefer the persistent store when available, it survives restarts
	// and supports filtering.
	if s.db != nil {
		events, err := s.db.Events(datastore.Query{
			Station: c.QueryParam("station"),
			Event:   c.QueryParam("event"),
			Limit:   limit,
		})
		if err != nil {
			s.logger.Error("event query failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "event query failed")
		}
		return c.JSON(http.StatusOK, events)
	}

	return c.JSON(http.StatusOK, renderEvents(s.store.Recent(limit)))
}

func (s *Server) handleStations(c echo.Context) error {
	return c.JSON(http.StatusOK, s.registry.Snapshot())
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "ok",
		"pipeline": s.manager.Stats(),
	})
}

func renderEvents(events []*emitter.Event) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(events))
	for _, e := range events {
		data, err := e.MarshalJSON()
		if err != nil {
			continue
		}
		out = append(out, data)
	}
	return out
}
