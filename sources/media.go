// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unigate/unigate/providers"
)

const (
	tenorDefaultBaseURL = "https://tenor.googleapis.com"
	tenorDefaultLimit   = 5
)

// TenorConfig configures the media search adapter.
type TenorConfig struct {
	APIKey   string
	BaseURL  string
	Limit    int
	Priority int
	Quota    int
	Timeout  time.Duration
}

// Tenor searches short media clips through the Tenor v2 API.
type Tenor struct {
	meta
	baseURL string
	apiKey  string
	limit   int
	client  *http.Client
}

// NewTenor creates the adapter. The upstream requires a key.
func NewTenor(cfg TenorConfig) *Tenor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = tenorDefaultBaseURL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = tenorDefaultLimit
	}
	return &Tenor{
		meta: meta{
			name:     "tenor",
			domain:   providers.DomainMedia,
			priority: cfg.Priority,
			quota:    cfg.Quota,
			keySet:   cfg.APIKey != "",
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		limit:   cfg.Limit,
		client:  newClient(cfg.Timeout),
	}
}

type tenorResponse struct {
	Results []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		ItemURL      string `json:"itemurl"`
		MediaFormats map[string]struct {
			URL string `json:"url"`
		} `json:"media_formats"`
	} `json:"results"`
}

// Call searches media for the query.
func (p *Tenor) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	start := time.Now()

	q := url.Values{}
	q.Set("q", req.Query)
	q.Set("key", p.apiKey)
	q.Set("limit", fmt.Sprintf("%d", p.limit))

	var apiResp tenorResponse
	if err := getJSON(ctx, p.client, p.name, p.baseURL+"/v2/search?"+q.Encode(), nil, &apiResp); err != nil {
		return nil, err
	}
	if len(apiResp.Results) == 0 {
		return nil, fmt.Errorf("tenor: no media for %q: %w", req.Query, providers.ErrProviderPermanent)
	}

	var lines []string
	var items []map[string]any
	for _, hit := range apiResp.Results {
		mediaURL := hit.ItemURL
		if gif, ok := hit.MediaFormats["gif"]; ok && gif.URL != "" {
			mediaURL = gif.URL
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", hit.Title, mediaURL))
		items = append(items, map[string]any{"id": hit.ID, "title": hit.Title, "url": mediaURL})
	}

	return &providers.Result{
		Content: strings.Join(lines, "\n"),
		Data:    map[string]any{"results": items},
		Elapsed: time.Since(start),
	}, nil
}
