package api

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lox/sunburntimer/internal/burn"
	"github.com/lox/sunburntimer/internal/exposure"
	"github.com/lox/sunburntimer/internal/ingest"
	"github.com/lox/sunburntimer/internal/models"
	"github.com/lox/sunburntimer/internal/solar"
	"github.com/lox/sunburntimer/internal/tz"
)

// parseBurnRequest reads location|lat+lon, skin, spf, sweat, at and narrative from the query.
func parseBurnRequest(r *http.Request) (exposure.Request, error) {
	q := r.URL.Query()
	req := exposure.Request{
		Name:      q.Get("name"),
		Skin:      burn.SkinType(strings.ToUpper(q.Get("skin"))),
		SPF:       burn.SPFLevel(strings.ToUpper(q.Get("spf"))),
		Sweat:     burn.SweatLevel(strings.ToUpper(q.Get("sweat"))),
		Narrative: q.Get("narrative") == "1" || q.Get("narrative") == "true",
	}

	if raw := q.Get("location"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return req, fmt.Errorf("%w: location must be an integer id", exposure.ErrInvalid)
		}
		req.LocationID = id
	} else if q.Has("lat") || q.Has("lon") {
		lat, err := strconv.ParseFloat(q.Get("lat"), 64)
		if err != nil {
			return req, fmt.Errorf("%w: bad lat %q", exposure.ErrInvalid, q.Get("lat"))
		}
		lon, err := strconv.ParseFloat(q.Get("lon"), 64)
		if err != nil {
			return req, fmt.Errorf("%w: bad lon %q", exposure.ErrInvalid, q.Get("lon"))
		}
		req.Latitude, req.Longitude = &lat, &lon
	}

	if raw := q.Get("at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return req, fmt.Errorf("%w: at must be RFC 3339", exposure.ErrInvalid)
		}
		req.Now = at
	}
	return req, nil
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	req, err := parseBurnRequest(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	est, err := s.exposure.Estimate(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

type hourlyView struct {
	Time        time.Time `json:"time"`
	UVIndex     float64   `json:"uvIndex"`
	Temperature *float64  `json:"temperature,omitempty"`
	CloudCover  *int64    `json:"cloudCover,omitempty"`
}

type forecastView struct {
	Location  locationView            `json:"location"`
	Timezone  string                  `json:"timezone"`
	Source    string                  `json:"source"`
	FetchedAt time.Time               `json:"fetchedAt"`
	CurrentUV *float64                `json:"currentUv,omitempty"`
	Hourly    []hourlyView            `json:"hourly"`
	Days      []ingest.DaySummary     `json:"days"`
	Daylight  []models.DaylightWindow `json:"daylight"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	loc, err := s.locationParam(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	forecast, err := s.exposure.Forecast(r.Context(), *loc, s.now())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	view := forecastView{
		Location:  newLocationView(*loc),
		Timezone:  forecast.Timezone,
		Source:    forecast.Source,
		FetchedAt: forecast.FetchedAt,
		Hourly:    make([]hourlyView, 0, len(forecast.Hourly)),
		Days:      ingest.SummarizeDays(forecast.Hourly, tz.Location(forecast.Timezone)),
		Daylight:  forecast.Days,
	}
	if forecast.CurrentUV.Valid {
		view.CurrentUV = &forecast.CurrentUV.Float64
	}
	for _, h := range forecast.Hourly {
		hv := hourlyView{Time: h.Time, UVIndex: h.UVIndex}
		if h.Temperature.Valid {
			hv.Temperature = &h.Temperature.Float64
		}
		if h.CloudCover.Valid {
			hv.CloudCover = &h.CloudCover.Int64
		}
		view.Hourly = append(view.Hourly, hv)
	}
	writeJSON(w, http.StatusOK, view)
}

type sunView struct {
	solar.Daylight
	ElevationDeg float64 `json:"elevationDeg"`
	AzimuthDeg   float64 `json:"azimuthDeg"`
}

func (s *Server) handleSun(w http.ResponseWriter, r *http.Request) {
	loc, err := s.locationParam(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	now := s.now()
	forecast, err := s.exposure.Forecast(r.Context(), *loc, now)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	zone := tz.Location(forecast.Timezone)
	today := now.In(zone).Format("2006-01-02")
	for _, d := range forecast.Days {
		if d.Date.Format("2006-01-02") != today {
			continue
		}
		pos := solar.PositionAt(now, loc.Latitude, loc.Longitude)
		writeJSON(w, http.StatusOK, sunView{
			Daylight:     solar.Summarize(now, d.Sunrise, d.Sunset, loc.Latitude),
			ElevationDeg: pos.ElevationDeg,
			AzimuthDeg:   pos.AzimuthDeg,
		})
		return
	}
	writeError(w, http.StatusServiceUnavailable, "no daylight data for today")
}

func (s *Server) handleAirQuality(w http.ResponseWriter, r *http.Request) {
	if s.airQuality == nil {
		writeError(w, http.StatusServiceUnavailable, "air quality lookups disabled")
		return
	}
	loc, err := s.locationParam(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	aq, err := s.airQuality.Current(r.Context(), loc.Latitude, loc.Longitude)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"usAqi": aq.USAQI, "fetchedAt": aq.FetchedAt})
}

func (s *Server) handlePlaces(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		writeError(w, http.StatusServiceUnavailable, "place search disabled")
		return
	}
	places, err := s.geocoder.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, places)
}

type locationView struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Admin1      string   `json:"admin1,omitempty"`
	CountryCode string   `json:"countryCode,omitempty"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Elevation   *float64 `json:"elevation,omitempty"`
	Timezone    string   `json:"timezone"`
}

func newLocationView(loc models.Location) locationView {
	v := locationView{
		ID:          loc.ID,
		Name:        loc.Name,
		Admin1:      loc.Admin1.String,
		CountryCode: loc.CountryCode.String,
		Latitude:    loc.Latitude,
		Longitude:   loc.Longitude,
		Timezone:    loc.Timezone,
	}
	if loc.Elevation.Valid {
		v.Elevation = &loc.Elevation.Float64
	}
	return v
}

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := s.store.ListLocations()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]locationView, 0, len(locations))
	for _, loc := range locations {
		views = append(views, newLocationView(loc))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var in locationView
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		writeError(w, http.StatusBadRequest, "name is required")
		return
	case in.Latitude < -90 || in.Latitude > 90 || in.Longitude < -180 || in.Longitude > 180:
		writeError(w, http.StatusBadRequest, "coordinates out of range")
		return
	case in.Timezone != "" && !tz.Valid(in.Timezone):
		writeError(w, http.StatusBadRequest, "unknown timezone")
		return
	}

	loc := models.Location{
		Name:        in.Name,
		Admin1:      sql.NullString{String: in.Admin1, Valid: in.Admin1 != ""},
		CountryCode: sql.NullString{String: in.CountryCode, Valid: in.CountryCode != ""},
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Timezone:    in.Timezone,
	}
	if in.Elevation != nil {
		loc.Elevation = sql.NullFloat64{Float64: *in.Elevation, Valid: true}
	}

	id, err := s.store.UpsertLocation(loc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	saved, err := s.exposure.Location(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newLocationView(*saved))
}

func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "location must be an integer id")
		return
	}
	if _, err := s.exposure.Location(id); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := s.store.DeleteLocation(id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type preferencesView struct {
	Profile    string    `json:"profile"`
	Skin       string    `json:"skin,omitempty"`
	SPF        string    `json:"spf,omitempty"`
	Sweat      string    `json:"sweat,omitempty"`
	LocationID *int64    `json:"locationId,omitempty"`
	Ready      bool      `json:"ready"`
	UpdatedAt  time.Time `json:"updatedAt,omitzero"`
}

func newPreferencesView(p models.Preferences) preferencesView {
	v := preferencesView{
		Profile:   p.Profile,
		Skin:      p.SkinType.String,
		SPF:       p.SPFLevel.String,
		Sweat:     p.SweatLevel.String,
		Ready:     p.Ready(),
		UpdatedAt: p.UpdatedAt,
	}
	if p.LocationID.Valid {
		v.LocationID = &p.LocationID.Int64
	}
	return v
}

func profileName(raw string) string {
	if raw = strings.TrimSpace(raw); raw != "" {
		return raw
	}
	return "default"
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	profile := profileName(r.URL.Query().Get("profile"))
	prefs, err := s.store.GetPreferences(profile)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if prefs == nil {
		writeJSON(w, http.StatusOK, preferencesView{Profile: profile})
		return
	}
	writeJSON(w, http.StatusOK, newPreferencesView(*prefs))
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var in preferencesView
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	prefs := models.Preferences{Profile: profileName(in.Profile)}
	if in.Skin != "" {
		skin, err := burn.ParseSkinType(strings.ToUpper(in.Skin))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		prefs.SkinType = sql.NullString{String: string(skin), Valid: true}
	}
	if in.SPF != "" {
		spf, err := burn.ParseSPFLevel(strings.ToUpper(in.SPF))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		prefs.SPFLevel = sql.NullString{String: string(spf), Valid: true}
	}
	if in.Sweat != "" {
		sweat, err := burn.ParseSweatLevel(strings.ToUpper(in.Sweat))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		prefs.SweatLevel = sql.NullString{String: string(sweat), Valid: true}
	}
	if in.LocationID != nil {
		if _, err := s.exposure.Location(*in.LocationID); err != nil {
			writeServiceError(w, err)
			return
		}
		prefs.LocationID = sql.NullInt64{Int64: *in.LocationID, Valid: true}
	}

	saved, err := s.store.SavePreferences(prefs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPreferencesView(*saved))
}

type calculationView struct {
	ID          string     `json:"id"`
	LocationID  *int64     `json:"locationId,omitempty"`
	Skin        string     `json:"skin"`
	SPF         string     `json:"spf"`
	Sweat       string     `json:"sweat"`
	StartedAt   time.Time  `json:"startedAt"`
	BurnTime    *time.Time `json:"burnTime,omitempty"`
	Resolution  int        `json:"resolution"`
	Points      int        `json:"points"`
	FinalDamage float64    `json:"finalDamage"`
	Truncated   bool       `json:"truncated"`
}

func (s *Server) handleRecentCalculations(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	records, err := s.store.RecentCalculations(limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	views := make([]calculationView, 0, len(records))
	for _, rec := range records {
		v := calculationView{
			ID:          rec.ID,
			Skin:        rec.SkinType,
			SPF:         rec.SPFLevel,
			Sweat:       rec.SweatLevel,
			StartedAt:   rec.StartedAt,
			Resolution:  rec.Resolution,
			Points:      rec.PointCount,
			FinalDamage: rec.FinalDamage,
			Truncated:   rec.Truncated,
		}
		if rec.LocationID.Valid {
			v.LocationID = &rec.LocationID.Int64
		}
		if rec.BurnTime.Valid {
			v.BurnTime = &rec.BurnTime.Time
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}
