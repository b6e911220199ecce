package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lox/sunburntimer/internal/httputil"
	"github.com/lox/sunburntimer/internal/models"
)

const endpointAirQuality = "v1/air-quality"

type AirQualityClient struct {
	baseURL string
	client  *http.Client
}

func NewAirQualityClient(baseURL string) *AirQualityClient {
	return &AirQualityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httputil.NewClient(),
	}
}

type airQualityResponse struct {
	Current *struct {
		Time  int64    `json:"time"`
		USAQI *float64 `json:"us_aqi"`
	} `json:"current"`
}

// Current returns the current US AQI, rounded to the nearest integer.
func (a *AirQualityClient) Current(ctx context.Context, lat, lon float64) (*models.AirQuality, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current", "us_aqi")
	q.Set("timeformat", "unixtime")

	body, _, err := getBody(ctx, a.client, SourceOpenMeteo, endpointAirQuality, a.baseURL+"/"+endpointAirQuality+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var data airQualityResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if data.Current == nil || data.Current.USAQI == nil {
		return nil, fmt.Errorf("air quality response has no us_aqi")
	}

	fetchedAt := time.Now().UTC()
	if data.Current.Time > 0 {
		fetchedAt = time.Unix(data.Current.Time, 0).UTC()
	}
	return &models.AirQuality{
		USAQI:     int(math.Round(*data.Current.USAQI)),
		FetchedAt: fetchedAt,
	}, nil
}
