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

const nominatimDefaultBaseURL = "https://nominatim.openstreetmap.org"

// NominatimConfig configures the geocoding adapter.
type NominatimConfig struct {
	BaseURL  string
	Priority int
	Quota    int
	Timeout  time.Duration
}

// Nominatim resolves place names to coordinates and back through the
// OpenStreetMap Nominatim API. Forward lookups use the query or the
// "place" param; a reverse lookup is selected by lat/lon params.
type Nominatim struct {
	meta
	baseURL string
	client  *http.Client
}

// NewNominatim creates the adapter.
func NewNominatim(cfg NominatimConfig) *Nominatim {
	if cfg.BaseURL == "" {
		cfg.BaseURL = nominatimDefaultBaseURL
	}
	return &Nominatim{
		meta: meta{
			name:     "nominatim",
			domain:   providers.DomainGeocode,
			priority: cfg.Priority,
			quota:    cfg.Quota,
			keySet:   true,
		},
		baseURL: cfg.BaseURL,
		client:  newClient(cfg.Timeout),
	}
}

type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Type        string `json:"type"`
}

// Call dispatches to forward or reverse geocoding based on params.
func (p *Nominatim) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	lat, latOK := paramFloat(req, "lat")
	lon, lonOK := paramFloat(req, "lon")
	if latOK && lonOK {
		return p.reverse(ctx, lat, lon)
	}
	place := paramString(req, "place")
	if place == "" {
		place = req.Query
	}
	if place == "" {
		return nil, fmt.Errorf("nominatim: missing place or coordinates: %w", providers.ErrProviderPermanent)
	}
	return p.forward(ctx, place)
}

func (p *Nominatim) forward(ctx context.Context, place string) (*providers.Result, error) {
	start := time.Now()

	q := url.Values{}
	q.Set("q", place)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")

	var places []nominatimPlace
	if err := getJSON(ctx, p.client, p.name, p.baseURL+"/search?"+q.Encode(), nil, &places); err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, fmt.Errorf("nominatim: no match for %q: %w", place, providers.ErrProviderPermanent)
	}

	hit := places[0]
	return &providers.Result{
		Content: fmt.Sprintf("%s is at latitude %s, longitude %s.", hit.DisplayName, hit.Lat, hit.Lon),
		Data: map[string]any{
			"display_name": hit.DisplayName,
			"lat":          hit.Lat,
			"lon":          hit.Lon,
			"type":         hit.Type,
		},
		Elapsed: time.Since(start),
	}, nil
}

func (p *Nominatim) reverse(ctx context.Context, lat, lon float64) (*providers.Result, error) {
	start := time.Now()

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.6f", lat))
	q.Set("lon", fmt.Sprintf("%.6f", lon))
	q.Set("format", "jsonv2")

	var place nominatimPlace
	if err := getJSON(ctx, p.client, p.name, p.baseURL+"/reverse?"+q.Encode(), nil, &place); err != nil {
		return nil, err
	}
	if place.DisplayName == "" {
		return nil, fmt.Errorf("nominatim: nothing at %.6f,%.6f: %w", lat, lon, providers.ErrProviderPermanent)
	}

	return &providers.Result{
		Content: fmt.Sprintf("Coordinates %.6f, %.6f resolve to %s.", lat, lon, place.DisplayName),
		Data: map[string]any{
			"display_name": place.DisplayName,
			"lat":          place.Lat,
			"lon":          place.Lon,
		},
		Elapsed: time.Since(start),
	}, nil
}
