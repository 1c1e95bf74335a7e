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

const stockQuoteDefaultBaseURL = "https://query1.finance.yahoo.com"

// StockQuoteConfig configures the stock quote adapter.
type StockQuoteConfig struct {
	BaseURL  string
	Priority int
	Quota    int
	Timeout  time.Duration
}

// StockQuote serves delayed quotes from a Yahoo-style chart API. The
// same adapter backs the market-summary domain through well-known
// index symbols.
type StockQuote struct {
	meta
	baseURL string
	client  *http.Client
}

// NewStockQuote creates the adapter.
func NewStockQuote(cfg StockQuoteConfig) *StockQuote {
	if cfg.BaseURL == "" {
		cfg.BaseURL = stockQuoteDefaultBaseURL
	}
	return &StockQuote{
		meta: meta{
			name:     "stockquote",
			domain:   providers.DomainStock,
			priority: cfg.Priority,
			quota:    cfg.Quota,
			keySet:   true,
		},
		baseURL: cfg.BaseURL,
		client:  newClient(cfg.Timeout),
	}
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Call fetches the latest quote for the symbol (param "symbol", falling
// back to a $TICKER mention in the query).
func (p *StockQuote) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	start := time.Now()

	symbol := strings.ToUpper(paramString(req, "symbol"))
	if symbol == "" {
		symbol = tickerFromQuery(req.Query)
	}
	if symbol == "" {
		return nil, fmt.Errorf("stockquote: missing symbol: %w", providers.ErrProviderPermanent)
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", p.baseURL, url.PathEscape(symbol))
	var apiResp yahooChartResponse
	if err := getJSON(ctx, p.client, p.name, endpoint, nil, &apiResp); err != nil {
		return nil, err
	}
	if apiResp.Chart.Error != nil {
		return nil, fmt.Errorf("stockquote: %s (%s): %w",
			apiResp.Chart.Error.Description, apiResp.Chart.Error.Code, providers.ErrProviderPermanent)
	}
	if len(apiResp.Chart.Result) == 0 {
		return nil, fmt.Errorf("stockquote: no result for %q: %w", symbol, providers.ErrProviderPermanent)
	}

	quoteMeta := apiResp.Chart.Result[0].Meta
	change := 0.0
	if quoteMeta.PreviousClose != 0 {
		change = (quoteMeta.RegularMarketPrice - quoteMeta.PreviousClose) / quoteMeta.PreviousClose * 100
	}

	return &providers.Result{
		Content: fmt.Sprintf("%s last traded at %.2f %s (%+.2f%% vs previous close).",
			quoteMeta.Symbol, quoteMeta.RegularMarketPrice, quoteMeta.Currency, change),
		Data: map[string]any{
			"symbol":         quoteMeta.Symbol,
			"price":          quoteMeta.RegularMarketPrice,
			"currency":       quoteMeta.Currency,
			"previous_close": quoteMeta.PreviousClose,
			"change_pct":     change,
		},
		Elapsed: time.Since(start),
	}, nil
}

// tickerFromQuery extracts a $TICKER mention.
func tickerFromQuery(query string) string {
	for _, word := range strings.Fields(query) {
		word = strings.Trim(word, ".,?!")
		if len(word) > 1 && len(word) <= 6 && word[0] == '$' {
			return strings.ToUpper(word[1:])
		}
	}
	return ""
}

// MarketSummary reuses the quote adapter over the major indices for
// the market-summary domain.
type MarketSummary struct {
	meta
	quotes  *StockQuote
	symbols []string
}

// marketIndices are the defaults for a summary sweep.
var marketIndices = []string{"^GSPC", "^DJI", "^IXIC"}

// NewMarketSummary creates the summary adapter over an existing quote
// adapter.
func NewMarketSummary(quotes *StockQuote, priority int) *MarketSummary {
	return &MarketSummary{
		meta: meta{
			name:     "marketsummary",
			domain:   providers.DomainMarket,
			priority: priority,
			keySet:   true,
		},
		quotes:  quotes,
		symbols: marketIndices,
	}
}

// Call sweeps the index symbols sequentially; one success is enough.
func (p *MarketSummary) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	start := time.Now()

	var lines []string
	data := map[string]any{}
	var lastErr error
	for _, symbol := range p.symbols {
		res, err := p.quotes.Call(ctx, providers.Request{Params: map[string]any{"symbol": symbol}})
		if err != nil {
			lastErr = err
			continue
		}
		lines = append(lines, res.Content)
		data[symbol] = res.Data
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("marketsummary: no index responded: %w", lastErr)
	}

	return &providers.Result{
		Content: strings.Join(lines, "\n"),
		Data:    data,
		Elapsed: time.Since(start),
	}, nil
}
