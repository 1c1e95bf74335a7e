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

const wikipediaDefaultBaseURL = "https://en.wikipedia.org"

// WikipediaConfig configures the encyclopedia adapter.
type WikipediaConfig struct {
	BaseURL  string
	Language string // subdomain language, default "en"
	Priority int
	Quota    int
	Timeout  time.Duration
}

// Wikipedia serves article summaries through the REST API. It is the
// primary universal fallback source.
type Wikipedia struct {
	meta
	baseURL string
	client  *http.Client
}

// NewWikipedia creates the adapter.
func NewWikipedia(cfg WikipediaConfig) *Wikipedia {
	if cfg.BaseURL == "" {
		lang := cfg.Language
		if lang == "" {
			lang = "en"
		}
		cfg.BaseURL = fmt.Sprintf("https://%s.wikipedia.org", lang)
	}
	return &Wikipedia{
		meta: meta{
			name:     "wikipedia",
			domain:   providers.DomainEncyclopedia,
			priority: cfg.Priority,
			quota:    cfg.Quota,
			keySet:   true,
		},
		baseURL: cfg.BaseURL,
		client:  newClient(cfg.Timeout),
	}
}

type wikiSearchResponse struct {
	Pages []struct {
		Title string `json:"title"`
		Key   string `json:"key"`
	} `json:"pages"`
}

type wikiSummaryResponse struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	Content struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Call searches for the best-matching article and returns its summary.
func (p *Wikipedia) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	start := time.Now()

	title := paramString(req, "title")
	if title == "" {
		q := url.Values{}
		q.Set("q", req.Query)
		q.Set("limit", "1")
		var search wikiSearchResponse
		if err := getJSON(ctx, p.client, p.name, p.baseURL+"/w/rest.php/v1/search/page?"+q.Encode(), nil, &search); err != nil {
			return nil, err
		}
		if len(search.Pages) == 0 {
			return nil, fmt.Errorf("wikipedia: no article for %q: %w", req.Query, providers.ErrProviderPermanent)
		}
		title = search.Pages[0].Key
	}

	var summary wikiSummaryResponse
	endpoint := p.baseURL + "/api/rest_v1/page/summary/" + url.PathEscape(title)
	if err := getJSON(ctx, p.client, p.name, endpoint, nil, &summary); err != nil {
		return nil, err
	}
	if summary.Extract == "" {
		return nil, fmt.Errorf("wikipedia: empty summary for %q: %w", title, providers.ErrProviderPermanent)
	}

	return &providers.Result{
		Content: fmt.Sprintf("%s: %s", summary.Title, summary.Extract),
		Data: map[string]any{
			"title": summary.Title,
			"url":   summary.Content.Desktop.Page,
		},
		Elapsed: time.Since(start),
	}, nil
}
