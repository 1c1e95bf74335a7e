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
	newsDefaultBaseURL  = "https://newsapi.org"
	newsDefaultPageSize = 5
)

// NewsConfig configures the news search adapter.
type NewsConfig struct {
	APIKey   string
	BaseURL  string
	PageSize int
	Priority int
	Quota    int
	Timeout  time.Duration
}

// News searches recent articles through a NewsAPI-style endpoint. It
// doubles as a universal fallback for queries with no better source.
type News struct {
	meta
	baseURL  string
	apiKey   string
	pageSize int
	client   *http.Client
}

// NewNews creates the adapter. The upstream requires a key.
func NewNews(cfg NewsConfig) *News {
	if cfg.BaseURL == "" {
		cfg.BaseURL = newsDefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = newsDefaultPageSize
	}
	return &News{
		meta: meta{
			name:     "newsapi",
			domain:   providers.DomainNews,
			priority: cfg.Priority,
			quota:    cfg.Quota,
			keySet:   cfg.APIKey != "",
		},
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		client:   newClient(cfg.Timeout),
	}
}

type newsResponse struct {
	Status       string `json:"status"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Call searches articles matching the query, newest first.
func (p *News) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	start := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("newsapi: empty query: %w", providers.ErrProviderPermanent)
	}

	q := url.Values{}
	q.Set("q", req.Query)
	q.Set("pageSize", fmt.Sprintf("%d", p.pageSize))
	q.Set("sortBy", "publishedAt")
	if req.Language != "" {
		q.Set("language", req.Language)
	}

	var apiResp newsResponse
	err := getJSON(ctx, p.client, p.name, p.baseURL+"/v2/everything?"+q.Encode(),
		map[string]string{"X-Api-Key": p.apiKey}, &apiResp)
	if err != nil {
		return nil, err
	}
	if len(apiResp.Articles) == 0 {
		return nil, fmt.Errorf("newsapi: no articles for %q: %w", req.Query, providers.ErrProviderPermanent)
	}

	var b strings.Builder
	var items []map[string]any
	for i, article := range apiResp.Articles {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s (%s, %s)", article.Title, article.Source.Name, article.PublishedAt)
		if article.Description != "" {
			fmt.Fprintf(&b, ": %s", article.Description)
		}
		items = append(items, map[string]any{
			"title":        article.Title,
			"source":       article.Source.Name,
			"url":          article.URL,
			"published_at": article.PublishedAt,
		})
	}

	return &providers.Result{
		Content: b.String(),
		Data: map[string]any{
			"total_results": apiResp.TotalResults,
			"articles":      items,
		},
		Elapsed: time.Since(start),
	}, nil
}
