// Package api serves the burn calculator over HTTP as JSON, plus a PNG share card.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/sunburntimer/internal/exposure"
	"github.com/lox/sunburntimer/internal/imagegen"
	"github.com/lox/sunburntimer/internal/ingest"
	"github.com/lox/sunburntimer/internal/log"
	"github.com/lox/sunburntimer/internal/models"
	"github.com/lox/sunburntimer/internal/store"
)

type Server struct {
	store        *store.Store
	exposure     *exposure.Service
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration

	geocoder   *ingest.GeocodingClient
	airQuality *ingest.AirQualityClient

	backdrops   *imagegen.Cache
	backdropGen *imagegen.Generator
	genMu       sync.Mutex // one backdrop generation at a time
	cards       *imagegen.CardCache

	now func() time.Time
}

func NewServer(store *store.Store, svc *exposure.Service, addr string) *Server {
	return &Server{
		store:        store,
		exposure:     svc,
		addr:         addr,
		readTimeout:  10 * time.Second,
		writeTimeout: 30 * time.Second,
		cards:        imagegen.NewCardCache(5 * time.Minute),
		now:          time.Now,
	}
}

func (s *Server) SetTimeouts(read, write time.Duration) {
	if read > 0 {
		s.readTimeout = read
	}
	if write > 0 {
		s.writeTimeout = write
	}
}

// SetLookups enables place search and air quality. Either may be nil.
func (s *Server) SetLookups(geocoder *ingest.GeocodingClient, airQuality *ingest.AirQualityClient) {
	s.geocoder = geocoder
	s.airQuality = airQuality
}

// SetBackdrops enables AI backdrops on share cards. A nil generator serves cached images only.
func (s *Server) SetBackdrops(gen *imagegen.Generator, cache *imagegen.Cache) {
	s.backdropGen = gen
	s.backdrops = cache
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/burn", s.handleBurn)
	mux.HandleFunc("GET /api/forecast", s.handleForecast)
	mux.HandleFunc("GET /api/sun", s.handleSun)
	mux.HandleFunc("GET /api/aqi", s.handleAirQuality)
	mux.HandleFunc("GET /api/places", s.handlePlaces)
	mux.HandleFunc("GET /api/locations", s.handleListLocations)
	mux.HandleFunc("POST /api/locations", s.handleCreateLocation)
	mux.HandleFunc("DELETE /api/locations/{id}", s.handleDeleteLocation)
	mux.HandleFunc("GET /api/preferences", s.handleGetPreferences)
	mux.HandleFunc("PUT /api/preferences", s.handlePutPreferences)
	mux.HandleFunc("GET /api/calculations", s.handleRecentCalculations)
	mux.HandleFunc("GET /card.png", s.handleCard)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Infof("api: listening on %s", s.addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

type HealthStatus struct {
	Status           string         `json:"status"`
	MigrationVersion int            `json:"migrationVersion"`
	Locations        int            `json:"locations"`
	Ingest           []IngestHealth `json:"ingest"`
	Errors           []string       `json:"errors,omitempty"`
}

type IngestHealth struct {
	Source      string     `json:"source"`
	Endpoint    string     `json:"endpoint"`
	Runs        int        `json:"runs"`
	Failures    int        `json:"failures"`
	Records     int64      `json:"records"`
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

// handleHealth reports schema version, saved locations and the last day of ingest runs.
// A source whose every run failed marks the service degraded.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok", Ingest: []IngestHealth{}}

	version, err := s.store.MigrationVersion()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	health.MigrationVersion = version

	locations, err := s.store.ListLocations()
	if err != nil {
		health.Errors = append(health.Errors, "locations: "+err.Error())
	}
	health.Locations = len(locations)

	summaries, err := s.store.IngestSummaries(s.now().Add(-24 * time.Hour))
	if err != nil {
		health.Errors = append(health.Errors, "ingest: "+err.Error())
	}
	for _, sum := range summaries {
		ih := IngestHealth{
			Source:    sum.Source,
			Endpoint:  sum.Endpoint,
			Runs:      sum.Runs,
			Failures:  sum.Failures,
			Records:   sum.RecordsStored,
			LastError: sum.LastError.String,
		}
		if sum.LastSuccess.Valid {
			ih.LastSuccess = &sum.LastSuccess.Time
		} else {
			health.Errors = append(health.Errors, fmt.Sprintf("%s %s: no successful runs", sum.Source, sum.Endpoint))
		}
		health.Ingest = append(health.Ingest, ih)
	}

	if len(health.Errors) > 0 {
		health.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps exposure errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exposure.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, exposure.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, exposure.ErrNoForecast):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Errorf("api: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// locationParam loads the saved location named by the "location" query parameter.
func (s *Server) locationParam(r *http.Request) (*models.Location, error) {
	raw := r.URL.Query().Get("location")
	if raw == "" {
		return nil, fmt.Errorf("%w: location is required", exposure.ErrInvalid)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: location must be an integer id", exposure.ErrInvalid)
	}
	return s.exposure.Location(id)
}
