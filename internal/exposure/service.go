// Package exposure answers "when will I burn" for a place: it finds or refreshes the cached
// UV forecast, runs the burn calculation and records the outcome.
package exposure

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lox/sunburntimer/internal/burn"
	"github.com/lox/sunburntimer/internal/log"
	"github.com/lox/sunburntimer/internal/metrics"
	"github.com/lox/sunburntimer/internal/models"
	"github.com/lox/sunburntimer/internal/narrative"
	"github.com/lox/sunburntimer/internal/store"
)

var (
	ErrNotFound   = errors.New("location not found")
	ErrNoForecast = errors.New("no forecast available")
	ErrInvalid    = errors.New("invalid request")
)

const defaultStaleAfter = time.Hour

// Refresher fetches and stores a new forecast for a location.
type Refresher interface {
	RefreshLocation(ctx context.Context, loc models.Location) (*models.Forecast, error)
}

// Describer turns a finished estimate into prose.
type Describer interface {
	Describe(ctx context.Context, in narrative.Input) (string, error)
}

type Service struct {
	store      *store.Store
	refresher  Refresher
	narrator   Describer
	opts       burn.Options
	staleAfter time.Duration
	now        func() time.Time
}

func NewService(st *store.Store, refresher Refresher, opts burn.Options, staleAfter time.Duration) *Service {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Service{
		store:      st,
		refresher:  refresher,
		opts:       opts,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// SetNarrator enables narrative summaries for requests that ask for one.
func (s *Service) SetNarrator(d Describer) {
	s.narrator = d
}

// Request identifies a place either by saved LocationID or by coordinates.
// A zero Now means the current time.
type Request struct {
	LocationID int64
	Latitude   *float64
	Longitude  *float64
	Name       string
	Skin       burn.SkinType
	SPF        burn.SPFLevel
	Sweat      burn.SweatLevel
	Now        time.Time
	Narrative  bool
}

type Estimate struct {
	ID                string          `json:"id"`
	LocationID        int64           `json:"locationId"`
	LocationName      string          `json:"locationName"`
	Latitude          float64         `json:"latitude"`
	Longitude         float64         `json:"longitude"`
	Timezone          string          `json:"timezone"`
	Skin              burn.SkinType   `json:"skin"`
	SPF               burn.SPFLevel   `json:"spf"`
	Sweat             burn.SweatLevel `json:"sweat"`
	Now               time.Time       `json:"now"`
	ForecastSource    string          `json:"forecastSource"`
	ForecastFetchedAt time.Time       `json:"forecastFetchedAt"`
	Result            burn.Result     `json:"result"`
	Narrative         string          `json:"narrative,omitempty"`
}

func (r *Request) normalize() error {
	if _, ok := burn.SkinTypes[r.Skin]; !ok {
		return fmt.Errorf("%w: unknown skin type %q", ErrInvalid, r.Skin)
	}
	if r.SPF == "" {
		r.SPF = burn.SPFNone
	}
	if _, ok := burn.SPFLevels[r.SPF]; !ok {
		return fmt.Errorf("%w: unknown spf level %q", ErrInvalid, r.SPF)
	}
	if r.Sweat == "" {
		r.Sweat = burn.SweatLow
	}
	if _, ok := burn.SweatLevels[r.Sweat]; !ok {
		return fmt.Errorf("%w: unknown sweat level %q", ErrInvalid, r.Sweat)
	}
	if r.LocationID == 0 {
		if r.Latitude == nil || r.Longitude == nil {
			return fmt.Errorf("%w: location or coordinates required", ErrInvalid)
		}
		if *r.Latitude < -90 || *r.Latitude > 90 || *r.Longitude < -180 || *r.Longitude > 180 {
			return fmt.Errorf("%w: coordinates out of range", ErrInvalid)
		}
	}
	return nil
}

// Estimate runs a burn calculation for the request.
func (s *Service) Estimate(ctx context.Context, req Request) (*Estimate, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	if req.Now.IsZero() {
		req.Now = s.now()
	}

	loc, err := s.resolveLocation(req)
	if err != nil {
		return nil, err
	}

	forecast, err := s.Forecast(ctx, *loc, req.Now)
	if err != nil {
		metrics.CalculationsTotal.WithLabelValues("no_forecast").Inc()
		return nil, err
	}

	zone := forecast.Timezone
	if zone == "" {
		zone = loc.Timezone
	}

	result := burn.FindOptimal(burn.Input{
		Hourly:   forecast.Hourly,
		Now:      req.Now,
		Timezone: zone,
		Skin:     req.Skin,
		SPF:      req.SPF,
		Sweat:    req.Sweat,
	}, s.opts)

	est := &Estimate{
		ID:                uuid.NewString(),
		LocationID:        loc.ID,
		LocationName:      loc.Name,
		Latitude:          loc.Latitude,
		Longitude:         loc.Longitude,
		Timezone:          zone,
		Skin:              req.Skin,
		SPF:               req.SPF,
		Sweat:             req.Sweat,
		Now:               req.Now,
		ForecastSource:    forecast.Source,
		ForecastFetchedAt: forecast.FetchedAt,
		Result:            result,
	}

	if req.Narrative && s.narrator != nil && len(result.Points) > 0 {
		text, err := s.narrator.Describe(ctx, narrative.Input{
			Location: loc.Name,
			Timezone: zone,
			Now:      req.Now,
			Skin:     req.Skin,
			SPF:      req.SPF,
			Sweat:    req.Sweat,
			Result:   result,
		})
		if err != nil {
			log.Warnf("exposure: narrative: %v", err)
		} else {
			est.Narrative = text
		}
	}

	s.record(est)
	return est, nil
}

// Forecast returns the cached forecast for loc from now onwards, refreshing it first when it
// is missing or older than the stale threshold. A failed refresh falls back to a stale cache.
func (s *Service) Forecast(ctx context.Context, loc models.Location, now time.Time) (*models.Forecast, error) {
	cached, err := s.store.GetForecast(loc.ID, now)
	if err != nil {
		return nil, fmt.Errorf("load forecast: %w", err)
	}
	if cached != nil && len(cached.Hourly) > 0 && s.now().Sub(cached.FetchedAt) <= s.staleAfter {
		return cached, nil
	}

	if s.refresher == nil {
		if cached != nil && len(cached.Hourly) > 0 {
			return cached, nil
		}
		return nil, ErrNoForecast
	}

	if _, err := s.refresher.RefreshLocation(ctx, loc); err != nil {
		if cached != nil && len(cached.Hourly) > 0 {
			log.Warnw("exposure: refresh failed, using cached forecast",
				"location", loc.Name, "fetched_at", cached.FetchedAt, "error", err)
			return cached, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrNoForecast, err)
	}

	fresh, err := s.store.GetForecast(loc.ID, now)
	if err != nil {
		return nil, fmt.Errorf("load forecast: %w", err)
	}
	if fresh == nil || len(fresh.Hourly) == 0 {
		return nil, ErrNoForecast
	}
	return fresh, nil
}

// Location returns a saved location or ErrNotFound.
func (s *Service) Location(id int64) (*models.Location, error) {
	loc, err := s.store.GetLocation(id)
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	if loc == nil {
		return nil, ErrNotFound
	}
	return loc, nil
}

func (s *Service) resolveLocation(req Request) (*models.Location, error) {
	if req.LocationID != 0 {
		return s.Location(req.LocationID)
	}

	lat, lon := *req.Latitude, *req.Longitude
	loc, err := s.store.FindLocation(lat, lon)
	if err != nil {
		return nil, fmt.Errorf("find location: %w", err)
	}
	if loc != nil {
		return loc, nil
	}

	name := req.Name
	if name == "" {
		name = strconv.FormatFloat(lat, 'f', 3, 64) + "," + strconv.FormatFloat(lon, 'f', 3, 64)
	}
	id, err := s.store.UpsertLocation(models.Location{Name: name, Latitude: lat, Longitude: lon})
	if err != nil {
		return nil, err
	}
	return s.Location(id)
}

func (s *Service) record(est *Estimate) {
	res := est.Result

	outcome := "no_burn"
	switch {
	case len(res.Points) == 0:
		outcome = "insufficient_data"
	case res.BurnTime != nil:
		outcome = "burn"
	}
	metrics.CalculationsTotal.WithLabelValues(outcome).Inc()
	if len(res.Points) > 0 {
		metrics.CalculationResolution.WithLabelValues(strconv.Itoa(res.Resolution)).Inc()
		metrics.CalculationPoints.Observe(float64(len(res.Points)))
	}

	rec := models.CalculationRecord{
		ID:          est.ID,
		Latitude:    est.Latitude,
		Longitude:   est.Longitude,
		SkinType:    string(est.Skin),
		SPFLevel:    string(est.SPF),
		SweatLevel:  string(est.Sweat),
		StartedAt:   est.Now,
		Resolution:  res.Resolution,
		PointCount:  len(res.Points),
		FinalDamage: res.FinalDamage(),
		Truncated:   res.Truncated,
	}
	rec.LocationID.Int64, rec.LocationID.Valid = est.LocationID, est.LocationID != 0
	if res.BurnTime != nil {
		rec.BurnTime.Time, rec.BurnTime.Valid = res.BurnTime.UTC(), true
	}
	if err := s.store.InsertCalculation(rec); err != nil {
		log.Warnf("exposure: record calculation %s: %v", est.ID, err)
	}
}
