package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/lox/sunburntimer/internal/models"
	"github.com/lox/sunburntimer/internal/store"
)

func fastRetry(t *testing.T) {
	t.Helper()
	orig := newBackOff
	newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}
	t.Cleanup(func() { newBackOff = orig })
}

// 2025-01-10 00:00 UTC is 11:00 in Melbourne.
const forecastJSON = `{
  "latitude": -36.75,
  "longitude": 146.975,
  "elevation": 313.0,
  "timezone": "Australia/Melbourne",
  "utc_offset_seconds": 39600,
  "current": {"time": 1736467200, "interval": 900, "uv_index": 7.45},
  "hourly": {
    "time": [1736474400, 1736467200, 1736470800, 1736478000],
    "uv_index": [9.1, 7.45, 8.6, null],
    "temperature_2m": [27.1, 25.3, 26.4, 27.8],
    "cloud_cover": [12, 5, null, 40]
  },
  "daily": {
    "time": [1736427600],
    "sunrise": [1736447520],
    "sunset": [1736500260]
  }
}`

func TestParseForecast(t *testing.T) {
	result := &FetchResult{}
	f, err := parseForecast([]byte(forecastJSON), result)
	require.NoError(t, err)

	require.Equal(t, "Australia/Melbourne", f.Timezone)
	require.Equal(t, SourceOpenMeteo, f.Source)
	require.True(t, f.Elevation.Valid)
	require.InDelta(t, 7.45, f.CurrentUV.Float64, 1e-9)

	require.Len(t, f.Hourly, 4)
	for i := 1; i < len(f.Hourly); i++ {
		require.True(t, f.Hourly[i].Time.After(f.Hourly[i-1].Time), "hourly not ascending at %d", i)
	}
	require.Equal(t, time.Unix(1736467200, 0).UTC(), f.Hourly[0].Time)
	require.InDelta(t, 7.45, f.Hourly[0].UVIndex, 1e-9)
	require.Zero(t, f.Hourly[3].UVIndex, "null uv should become zero")
	require.False(t, f.Hourly[1].CloudCover.Valid)

	require.Len(t, f.Days, 1)
	require.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), f.Days[0].Date)
	require.True(t, f.Days[0].Sunset.After(f.Days[0].Sunrise))

	require.Equal(t, 4, result.RecordCount)
	require.Zero(t, result.ParseErrors)
}

func TestParseForecast_NoHourly(t *testing.T) {
	_, err := parseForecast([]byte(`{"timezone":"UTC","hourly":{"time":[]}}`), nil)
	require.Error(t, err)
}

func TestClampUV(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{5, 5},
		{0, 0},
		{-0.2, 0},
	}
	for _, tt := range tests {
		if got := clampUV(tt.in); got != tt.want {
			t.Errorf("clampUV(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := clampUV(nanValue()); got != 0 {
		t.Errorf("clampUV(NaN) = %v, want 0", got)
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestForecastClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/forecast", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "auto", q.Get("timezone"))
		require.Equal(t, "unixtime", q.Get("timeformat"))
		require.Equal(t, "3", q.Get("forecast_days"))
		require.Contains(t, q.Get("hourly"), "uv_index")
		require.Equal(t, "-36.7500", q.Get("latitude"))
		fmt.Fprint(w, forecastJSON)
	}))
	defer srv.Close()

	client := NewForecastClient(srv.URL+"/", 0)
	f, raw, result, err := client.Fetch(context.Background(), -36.75, 146.975)
	require.NoError(t, err)
	require.Len(t, f.Hourly, 4)
	require.Equal(t, forecastJSON, string(raw))
	require.Equal(t, http.StatusOK, result.HTTPStatus)
	require.Equal(t, len(forecastJSON), result.ResponseSize)
}

func TestForecastClientRetriesRateLimit(t *testing.T) {
	fastRetry(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, forecastJSON)
	}))
	defer srv.Close()

	_, _, _, err := NewForecastClient(srv.URL, 3).Fetch(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestForecastClientPermanentError(t *testing.T) {
	fastRetry(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":true,"reason":"Latitude must be in range of -90 to 90°."}`)
	}))
	defer srv.Close()

	_, _, result, err := NewForecastClient(srv.URL, 3).Fetch(context.Background(), 100, 0)
	require.ErrorContains(t, err, "status 400")
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, http.StatusBadRequest, result.HTTPStatus)
}

func TestGeocodingSearch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/v1/search", r.URL.Path)
		require.Equal(t, "Bright", r.URL.Query().Get("name"))
		require.Equal(t, "5", r.URL.Query().Get("count"))
		fmt.Fprint(w, `{"results":[{"id":2174003,"name":"Bright","latitude":-36.72998,"longitude":146.95984,
			"timezone":"Australia/Melbourne","country":"Australia","country_code":"AU","admin1":"Victoria"}]}`)
	}))
	defer srv.Close()

	client := NewGeocodingClient(srv.URL)

	places, err := client.Search(context.Background(), " B ")
	require.NoError(t, err)
	require.Empty(t, places)
	require.Zero(t, calls.Load(), "short queries should not hit the API")

	places, err = client.Search(context.Background(), "Bright")
	require.NoError(t, err)
	require.Len(t, places, 1)
	require.Equal(t, "Victoria", places[0].Admin1)
	require.Equal(t, "AU", places[0].CountryCode)
	require.Equal(t, "Australia/Melbourne", places[0].Timezone)
}

func TestGeocodingSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"generationtime_ms":0.5}`)
	}))
	defer srv.Close()

	places, err := NewGeocodingClient(srv.URL).Search(context.Background(), "Nowhereville")
	require.NoError(t, err)
	require.NotNil(t, places)
	require.Empty(t, places)
}

func TestAirQualityCurrent(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{"rounded up", `{"current":{"time":1736467200,"us_aqi":42.6}}`, 43, false},
		{"rounded down", `{"current":{"time":1736467200,"us_aqi":12.2}}`, 12, false},
		{"null aqi", `{"current":{"time":1736467200,"us_aqi":null}}`, 0, true},
		{"missing current", `{}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "us_aqi", r.URL.Query().Get("current"))
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			aq, err := NewAirQualityClient(srv.URL).Current(context.Background(), -36.7, 146.9)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, aq.USAQI)
			require.Equal(t, time.Unix(1736467200, 0).UTC(), aq.FetchedAt)
		})
	}
}

func TestParseUVCSV(t *testing.T) {
	input := strings.Join([]string{
		"timestamp,uvi",
		"2025-01-10T02:00:00Z,8.5",
		"",
		"1736467200, 7",
		"# maintenance note",
		"2025-01-10T01:00:00+00:00,-1",
		"not-a-time,3",
		"2025-01-10T03:00:00Z,high",
		"2025-01-10T04:00:00Z",
	}, "\n")

	hourly, parseErrors, err := ParseUVCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, hourly, 3)
	require.Len(t, parseErrors, 3)

	require.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), hourly[0].Time)
	require.Equal(t, 7.0, hourly[0].UVIndex)
	require.Zero(t, hourly[1].UVIndex, "negative uv should clamp to zero")
	require.Equal(t, 8.5, hourly[2].UVIndex)
}

func TestValidateForecast(t *testing.T) {
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	hour := func(i int, uv float64) models.HourlyUV {
		return models.HourlyUV{Time: start.Add(time.Duration(i) * time.Hour), UVIndex: uv}
	}

	tests := []struct {
		name      string
		forecast  models.Forecast
		wantFlags []string
	}{
		{
			name:     "clean",
			forecast: models.Forecast{Hourly: []models.HourlyUV{hour(0, 1), hour(1, 3)}},
		},
		{
			name:      "empty",
			forecast:  models.Forecast{},
			wantFlags: []string{FlagNoHourly},
		},
		{
			name:      "implausible uv reported once",
			forecast:  models.Forecast{Hourly: []models.HourlyUV{hour(0, 40), hour(1, 41)}},
			wantFlags: []string{FlagUVOutOfRange},
		},
		{
			name:      "gap",
			forecast:  models.Forecast{Hourly: []models.HourlyUV{hour(0, 1), hour(3, 1)}},
			wantFlags: []string{FlagHourlyGap},
		},
		{
			name:      "unordered",
			forecast:  models.Forecast{Hourly: []models.HourlyUV{hour(1, 1), hour(0, 1)}},
			wantFlags: []string{FlagHourlyUnordered},
		},
		{
			name: "bad cloud and daylight",
			forecast: models.Forecast{
				Hourly: []models.HourlyUV{{Time: start, CloudCover: sql.NullInt64{Int64: 130, Valid: true}}},
				Days:   []models.DaylightWindow{{Sunrise: start, Sunset: start}},
			},
			wantFlags: []string{FlagCloudCoverInvalid, FlagDaylightInvalid},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.wantFlags, ValidateForecast(&tt.forecast))
		})
	}
}

func TestSummarizeDays(t *testing.T) {
	mel, err := time.LoadLocation("Australia/Melbourne")
	require.NoError(t, err)

	// 20:00 UTC on the 9th is 07:00 on the 10th in Melbourne.
	start := time.Date(2025, 1, 9, 20, 0, 0, 0, time.UTC)
	uvs := []float64{0, 1, 4, 9, 11, 6, 2, 0}
	var hourly []models.HourlyUV
	for i, uv := range uvs {
		hourly = append(hourly, models.HourlyUV{Time: start.Add(time.Duration(i) * time.Hour), UVIndex: uv})
	}

	days := SummarizeDays(hourly, mel)
	require.Len(t, days, 1)
	d := days[0]
	require.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), d.Date)
	require.Equal(t, 11.0, d.PeakUV)
	require.Equal(t, start.Add(4*time.Hour), d.PeakTime)
	require.InDelta(t, 5.5, d.MeanUV, 1e-9)
	require.Equal(t, 4, d.HoursAbove3)
	require.Equal(t, 8, d.Samples)

	utcDays := SummarizeDays(hourly, time.UTC)
	require.Len(t, utcDays, 2)
	require.Empty(t, SummarizeDays(nil, nil))
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := store.New(db)
	require.NoError(t, s.Migrate())
	return s
}

func TestSchedulerRefreshLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, forecastJSON)
	}))
	defer srv.Close()

	st := setupTestStore(t)
	id, err := st.UpsertLocation(models.Location{Name: "Bright", Latitude: -36.75, Longitude: 146.975})
	require.NoError(t, err)
	loc, err := st.GetLocation(id)
	require.NoError(t, err)

	sched := NewScheduler(st, NewForecastClient(srv.URL, 3), time.Hour, 0)
	f, err := sched.RefreshLocation(context.Background(), *loc)
	require.NoError(t, err)
	require.Len(t, f.Hourly, 4)

	cached, err := st.GetForecast(id, time.Unix(1736467200, 0))
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.Len(t, cached.Hourly, 4)
	require.Equal(t, "Australia/Melbourne", cached.Timezone)

	updated, err := st.GetLocation(id)
	require.NoError(t, err)
	require.Equal(t, "Australia/Melbourne", updated.Timezone)

	failed, err := st.RecentIngestFailures(5)
	require.NoError(t, err)
	require.Empty(t, failed)
}

func TestSchedulerRefreshLocation_Failure(t *testing.T) {
	fastRetry(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	st := setupTestStore(t)
	id, err := st.UpsertLocation(models.Location{Name: "Bright", Latitude: -36.75, Longitude: 146.975})
	require.NoError(t, err)
	loc, _ := st.GetLocation(id)

	sched := NewScheduler(st, NewForecastClient(srv.URL, 3), time.Hour, 0)
	_, err = sched.RefreshLocation(context.Background(), *loc)
	require.Error(t, err)

	failed, err := st.RecentIngestFailures(5)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, int64(http.StatusServiceUnavailable), failed[0].HTTPStatus.Int64)
}

func TestSchedulerReplayLatest(t *testing.T) {
	st := setupTestStore(t)
	id, err := st.UpsertLocation(models.Location{Name: "Bright", Latitude: -36.75, Longitude: 146.975})
	require.NoError(t, err)
	loc, err := st.GetLocation(id)
	require.NoError(t, err)

	sched := NewScheduler(st, nil, time.Hour, 0)
	_, err = sched.ReplayLatest(*loc)
	require.ErrorContains(t, err, "no stored")

	_, err = st.StoreRawPayload(nil, SourceOpenMeteo, endpointForecast, &id, []byte(forecastJSON))
	require.NoError(t, err)

	f, err := sched.ReplayLatest(*loc)
	require.NoError(t, err)
	require.Len(t, f.Hourly, 4)
	require.WithinDuration(t, time.Now(), f.FetchedAt, time.Minute)

	cached, err := st.GetForecast(id, time.Unix(1736467200, 0))
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.Len(t, cached.Hourly, 4)
	require.Equal(t, SourceOpenMeteo, cached.Source)
}
