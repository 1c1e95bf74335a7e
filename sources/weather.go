// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/unigate/unigate/providers"
)

const (
	openMeteoDefaultBaseURL   = "https://api.open-meteo.com"
	openMeteoGeocodingBaseURL = "https://geocoding-api.open-meteo.com"
)

// OpenMeteoConfig configures the weather adapter.
type OpenMeteoConfig struct {
	BaseURL          string
	GeocodingBaseURL string
	Priority         int
	Quota            int
	Timeout          time.Duration
}

// OpenMeteo serves current conditions from the Open-Meteo forecast
// API. No credential is required.
type OpenMeteo struct {
	meta
	baseURL    string
	geocodeURL string
	client     *http.Client
}

// NewOpenMeteo creates the adapter.
func NewOpenMeteo(cfg OpenMeteoConfig) *OpenMeteo {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openMeteoDefaultBaseURL
	}
	if cfg.GeocodingBaseURL == "" {
		cfg.GeocodingBaseURL = openMeteoGeocodingBaseURL
	}
	return &OpenMeteo{
		meta: meta{
			name:     "openmeteo",
			domain:   providers.DomainWeather,
			priority: cfg.Priority,
			quota:    cfg.Quota,
			keySet:   true,
		},
		baseURL:    cfg.BaseURL,
		geocodeURL: cfg.GeocodingBaseURL,
		client:     newClient(cfg.Timeout),
	}
}

type openMeteoForecast struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

type openMeteoGeocode struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

// Call returns current conditions for params lat/lon, or for a place
// name (param "city" or the query) resolved through the geocoding API.
func (p *OpenMeteo) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	start := time.Now()

	lat, latOK := paramFloat(req, "lat")
	lon, lonOK := paramFloat(req, "lon")
	place := paramString(req, "city")
	if place == "" {
		place = req.Query
	}

	if !latOK || !lonOK {
		if place == "" {
			return nil, fmt.Errorf("openmeteo: missing location: %w", providers.ErrProviderPermanent)
		}
		q := url.Values{}
		q.Set("name", place)
		q.Set("count", "1")
		var geo openMeteoGeocode
		if err := getJSON(ctx, p.client, p.name, p.geocodeURL+"/v1/search?"+q.Encode(), nil, &geo); err != nil {
			return nil, err
		}
		if len(geo.Results) == 0 {
			return nil, fmt.Errorf("openmeteo: unknown place %q: %w", place, providers.ErrProviderPermanent)
		}
		lat, lon = geo.Results[0].Latitude, geo.Results[0].Longitude
		place = fmt.Sprintf("%s, %s", geo.Results[0].Name, geo.Results[0].Country)
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("current", "temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code")

	var forecast openMeteoForecast
	if err := getJSON(ctx, p.client, p.name, p.baseURL+"/v1/forecast?"+q.Encode(), nil, &forecast); err != nil {
		return nil, err
	}

	if place == "" {
		place = fmt.Sprintf("%.4f,%.4f", lat, lon)
	}
	content := fmt.Sprintf("Current weather for %s: %.1f°C, %.0f%% humidity, wind %.1f km/h (%s).",
		place, forecast.Current.Temperature, forecast.Current.Humidity,
		forecast.Current.WindSpeed, weatherCodeText(forecast.Current.WeatherCode))

	return &providers.Result{
		Content: content,
		Data: map[string]any{
			"location":     place,
			"latitude":     lat,
			"longitude":    lon,
			"temperature":  forecast.Current.Temperature,
			"humidity":     forecast.Current.Humidity,
			"wind_speed":   forecast.Current.WindSpeed,
			"weather_code": forecast.Current.WeatherCode,
		},
		Elapsed: time.Since(start),
	}, nil
}

// weatherCodeText maps the WMO weather codes Open-Meteo uses to short
// descriptions.
func weatherCodeText(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 3:
		return "partly cloudy"
	case code <= 48:
		return "fog"
	case code <= 57:
		return "drizzle"
	case code <= 67:
		return "rain"
	case code <= 77:
		return "snow"
	case code <= 82:
		return "rain showers"
	case code <= 86:
		return "snow showers"
	default:
		return "thunderstorm"
	}
}
