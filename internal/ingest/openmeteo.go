package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lox/sunburntimer/internal/httputil"
	"github.com/lox/sunburntimer/internal/models"
	"github.com/lox/sunburntimer/internal/tz"
)

const (
	SourceOpenMeteo     = "open-meteo"
	endpointForecast    = "v1/forecast"
	defaultForecastDays = 3
)

// ForecastClient fetches hourly UV forecasts from Open-Meteo.
type ForecastClient struct {
	baseURL string
	days    int
	client  *http.Client
}

func NewForecastClient(baseURL string, days int) *ForecastClient {
	if days <= 0 {
		days = defaultForecastDays
	}
	return &ForecastClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		days:    days,
		client:  httputil.NewClient(),
	}
}

type forecastResponse struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Elevation        *float64 `json:"elevation"`
	Timezone         string   `json:"timezone"`
	UTCOffsetSeconds int      `json:"utc_offset_seconds"`
	Current          *struct {
		Time    int64    `json:"time"`
		UVIndex *float64 `json:"uv_index"`
	} `json:"current"`
	Hourly struct {
		Time          []int64    `json:"time"`
		UVIndex       []*float64 `json:"uv_index"`
		Temperature2m []*float64 `json:"temperature_2m"`
		CloudCover    []*float64 `json:"cloud_cover"`
	} `json:"hourly"`
	Daily struct {
		Time    []int64 `json:"time"`
		Sunrise []int64 `json:"sunrise"`
		Sunset  []int64 `json:"sunset"`
	} `json:"daily"`
}

func (c *ForecastClient) forecastURL(lat, lon float64) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current", "uv_index")
	q.Set("hourly", "uv_index,temperature_2m,cloud_cover")
	q.Set("daily", "sunrise,sunset")
	q.Set("timezone", "auto")
	q.Set("forecast_days", strconv.Itoa(c.days))
	q.Set("timeformat", "unixtime")
	return c.baseURL + "/" + endpointForecast + "?" + q.Encode()
}

// Fetch returns the forecast for a coordinate along with the raw response body.
func (c *ForecastClient) Fetch(ctx context.Context, lat, lon float64) (*models.Forecast, []byte, *FetchResult, error) {
	body, result, err := getBody(ctx, c.client, SourceOpenMeteo, endpointForecast, c.forecastURL(lat, lon))
	if err != nil {
		return nil, nil, result, err
	}

	f, err := parseForecast(body, result)
	if err != nil {
		return nil, body, result, err
	}
	return f, body, result, nil
}

func parseForecast(body []byte, result *FetchResult) (*models.Forecast, error) {
	var data forecastResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if len(data.Hourly.Time) == 0 {
		return nil, fmt.Errorf("forecast has no hourly data")
	}

	f := &models.Forecast{
		Source:    SourceOpenMeteo,
		FetchedAt: time.Now().UTC(),
		Latitude:  data.Latitude,
		Longitude: data.Longitude,
		Timezone:  data.Timezone,
	}
	if f.Timezone == "" {
		f.Timezone = "UTC"
	}
	if data.Elevation != nil {
		f.Elevation = sql.NullFloat64{Float64: *data.Elevation, Valid: true}
	}
	if data.Current != nil && data.Current.UVIndex != nil {
		f.CurrentUV = sql.NullFloat64{Float64: clampUV(*data.Current.UVIndex), Valid: true}
	}

	var parseErrors []string
	for i, ts := range data.Hourly.Time {
		if i >= len(data.Hourly.UVIndex) {
			parseErrors = append(parseErrors, fmt.Sprintf("hourly[%d]: missing uv_index", i))
			continue
		}
		h := models.HourlyUV{Time: time.Unix(ts, 0).UTC()}
		if v := data.Hourly.UVIndex[i]; v != nil {
			h.UVIndex = clampUV(*v)
		}
		if i < len(data.Hourly.Temperature2m) && data.Hourly.Temperature2m[i] != nil {
			h.Temperature = sql.NullFloat64{Float64: *data.Hourly.Temperature2m[i], Valid: true}
		}
		if i < len(data.Hourly.CloudCover) && data.Hourly.CloudCover[i] != nil {
			h.CloudCover = sql.NullInt64{Int64: int64(math.Round(*data.Hourly.CloudCover[i])), Valid: true}
		}
		f.Hourly = append(f.Hourly, h)
	}
	sort.Slice(f.Hourly, func(i, j int) bool { return f.Hourly[i].Time.Before(f.Hourly[j].Time) })

	loc := tz.Location(f.Timezone)
	for i, ts := range data.Daily.Time {
		if i >= len(data.Daily.Sunrise) || i >= len(data.Daily.Sunset) {
			parseErrors = append(parseErrors, fmt.Sprintf("daily[%d]: missing sunrise/sunset", i))
			continue
		}
		local := time.Unix(ts, 0).In(loc)
		f.Days = append(f.Days, models.DaylightWindow{
			Date:    time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			Sunrise: time.Unix(data.Daily.Sunrise[i], 0).UTC(),
			Sunset:  time.Unix(data.Daily.Sunset[i], 0).UTC(),
		})
	}

	if result != nil {
		result.RecordCount = len(f.Hourly)
		if len(parseErrors) > 0 {
			result.ParseErrors = len(parseErrors)
			result.ParseError = fmt.Sprintf("%d parse errors: %v", len(parseErrors), parseErrors[0])
		}
	}
	return f, nil
}

// clampUV maps NaN and negative readings to zero.
func clampUV(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
