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

const coinGeckoDefaultBaseURL = "https://api.coingecko.com"

// CoinGeckoConfig configures the crypto price adapter.
type CoinGeckoConfig struct {
	APIKey   string // optional, raises the rate limit
	BaseURL  string
	Priority int
	Quota    int
	Timeout  time.Duration
}

// CoinGecko serves spot prices from the CoinGecko simple price API.
type CoinGecko struct {
	meta
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewCoinGecko creates the adapter. The free tier needs no key, so the
// credential flag is always set.
func NewCoinGecko(cfg CoinGeckoConfig) *CoinGecko {
	if cfg.BaseURL == "" {
		cfg.BaseURL = coinGeckoDefaultBaseURL
	}
	return &CoinGecko{
		meta: meta{
			name:     "coingecko",
			domain:   providers.DomainCryptoPrice,
			priority: cfg.Priority,
			quota:    cfg.Quota,
			keySet:   true,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  newClient(cfg.Timeout),
	}
}

// Call looks up one coin id (param "id", falling back to the query)
// against the usd/eur pair with 24h change.
func (p *CoinGecko) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	start := time.Now()

	id := paramString(req, "id")
	if id == "" {
		id = normalizeCoinID(req.Query)
	}
	if id == "" {
		return nil, fmt.Errorf("coingecko: missing coin id: %w", providers.ErrProviderPermanent)
	}

	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", "usd,eur")
	q.Set("include_24hr_change", "true")

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["x-cg-demo-api-key"] = p.apiKey
	}

	var apiResp map[string]map[string]float64
	if err := getJSON(ctx, p.client, p.name, p.baseURL+"/api/v3/simple/price?"+q.Encode(), headers, &apiResp); err != nil {
		return nil, err
	}

	prices, ok := apiResp[id]
	if !ok || len(prices) == 0 {
		return nil, fmt.Errorf("coingecko: unknown coin %q: %w", id, providers.ErrProviderPermanent)
	}

	content := fmt.Sprintf("%s is trading at $%.2f (€%.2f), %+.2f%% over the last 24 hours.",
		id, prices["usd"], prices["eur"], prices["usd_24h_change"])

	return &providers.Result{
		Content: content,
		Data: map[string]any{
			"id":             id,
			"usd":            prices["usd"],
			"eur":            prices["eur"],
			"usd_24h_change": prices["usd_24h_change"],
		},
		Elapsed: time.Since(start),
	}, nil
}

// coinAliases maps common names and tickers to CoinGecko ids.
var coinAliases = map[string]string{
	"btc":      "bitcoin",
	"bitcoin":  "bitcoin",
	"eth":      "ethereum",
	"ethereum": "ethereum",
	"sol":      "solana",
	"solana":   "solana",
	"doge":     "dogecoin",
	"dogecoin": "dogecoin",
	"ada":      "cardano",
	"xrp":      "ripple",
}

// normalizeCoinID picks the first recognizable coin mention out of a
// free-text query.
func normalizeCoinID(query string) string {
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if id, ok := coinAliases[strings.Trim(word, ".,?!")]; ok {
			return id
		}
	}
	return ""
}
