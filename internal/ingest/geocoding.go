package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/lox/sunburntimer/internal/httputil"
	"github.com/lox/sunburntimer/internal/models"
)

const (
	endpointSearch  = "v1/search"
	minQueryLength  = 2
	maxSearchResult = 5
)

// GeocodingClient resolves place names with the Open-Meteo geocoding API.
type GeocodingClient struct {
	baseURL string
	client  *http.Client
}

func NewGeocodingClient(baseURL string) *GeocodingClient {
	return &GeocodingClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httputil.NewClient(),
	}
}

type geocodingResponse struct {
	Results []struct {
		ID          int64   `json:"id"`
		Name        string  `json:"name"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		Timezone    string  `json:"timezone"`
		Country     string  `json:"country"`
		CountryCode string  `json:"country_code"`
		Admin1      string  `json:"admin1"`
	} `json:"results"`
}

// Search returns up to five places matching query. Queries under two characters return nothing.
func (g *GeocodingClient) Search(ctx context.Context, query string) ([]models.Place, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minQueryLength {
		return []models.Place{}, nil
	}

	q := url.Values{}
	q.Set("name", query)
	q.Set("count", fmt.Sprint(maxSearchResult))
	q.Set("language", "en")
	q.Set("format", "json")

	body, _, err := getBody(ctx, g.client, SourceOpenMeteo, endpointSearch, g.baseURL+"/"+endpointSearch+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var data geocodingResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	places := make([]models.Place, 0, len(data.Results))
	for _, r := range data.Results {
		places = append(places, models.Place{
			ID:          r.ID,
			Name:        r.Name,
			Admin1:      r.Admin1,
			Country:     r.Country,
			CountryCode: r.CountryCode,
			Latitude:    r.Latitude,
			Longitude:   r.Longitude,
			Timezone:    r.Timezone,
		})
	}
	return places, nil
}
