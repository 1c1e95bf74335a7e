// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unigate/unigate/providers"
)

// Compile-time interface checks for every adapter.
var (
	_ providers.Provider = (*OpenAI)(nil)
	_ providers.Provider = (*Anthropic)(nil)
	_ providers.Provider = (*Ollama)(nil)
	_ providers.Provider = (*Bedrock)(nil)
	_ providers.Provider = (*CoinGecko)(nil)
	_ providers.Provider = (*StockQuote)(nil)
	_ providers.Provider = (*MarketSummary)(nil)
	_ providers.Provider = (*OpenMeteo)(nil)
	_ providers.Provider = (*News)(nil)
	_ providers.Provider = (*Wikipedia)(nil)
	_ providers.Provider = (*Nominatim)(nil)
	_ providers.Provider = (*LibreTranslate)(nil)
	_ providers.Provider = (*Tenor)(nil)
	_ providers.Provider = (*OpenFDA)(nil)
)

func TestCoinGecko_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin", r.URL.Query().Get("ids"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":67000.5,"eur":61200.25,"usd_24h_change":2.1}}`))
	}))
	defer srv.Close()

	p := NewCoinGecko(CoinGeckoConfig{BaseURL: srv.URL})
	res, err := p.Call(context.Background(), providers.Request{Query: "what is the bitcoin price"})
	require.NoError(t, err)

	assert.Contains(t, res.Content, "$67000.50")
	assert.Equal(t, 67000.5, res.Data["usd"])
}

func TestCoinGecko_UnknownCoinIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := NewCoinGecko(CoinGeckoConfig{BaseURL: srv.URL})
	_, err := p.Call(context.Background(), providers.Request{Params: map[string]any{"id": "notacoin"}})
	require.Error(t, err)
	assert.False(t, providers.IsTransient(err))
}

func TestCoinGecko_RateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewCoinGecko(CoinGeckoConfig{BaseURL: srv.URL})
	_, err := p.Call(context.Background(), providers.Request{Params: map[string]any{"id": "bitcoin"}})
	require.Error(t, err)
	assert.True(t, providers.IsTransient(err))

	var apiErr *providers.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestOpenAI_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"hi there"}}],"usage":{"prompt_tokens":12,"completion_tokens":3}}`))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	assert.True(t, p.CredentialPresent())

	res, err := p.Call(context.Background(), providers.Request{Query: "hello", SystemPrompt: "be brief"})
	require.NoError(t, err)
	assert.Equal(t, "hi there", res.Content)
	assert.Equal(t, 3, res.Data["completion_tokens"])
}

func TestOpenAI_AuthFailureIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "bad", BaseURL: srv.URL})
	_, err := p.Call(context.Background(), providers.Request{Query: "hello"})
	require.Error(t, err)
	assert.False(t, providers.IsTransient(err))
}

func TestAnthropic_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"claude-3-5-haiku-20241022","content":[{"type":"text","text":"bonjour"}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":2}}`))
	}))
	defer srv.Close()

	p := NewAnthropic(AnthropicConfig{APIKey: "key-123", BaseURL: srv.URL})
	res, err := p.Call(context.Background(), providers.Request{Query: "say hello in french"})
	require.NoError(t, err)
	assert.Equal(t, "bonjour", res.Content)
	assert.Equal(t, "end_turn", res.Data["stop_reason"])
}

func TestStockQuote_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"AAPL","currency":"USD","regularMarketPrice":230.5,"chartPreviousClose":228.0}}],"error":null}}`))
	}))
	defer srv.Close()

	p := NewStockQuote(StockQuoteConfig{BaseURL: srv.URL})
	res, err := p.Call(context.Background(), providers.Request{Query: "how is $aapl doing"})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "AAPL last traded at 230.50 USD")
	assert.InDelta(t, 1.096, res.Data["change_pct"].(float64), 0.01)
}

func TestOpenMeteo_CallWithCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		assert.Equal(t, "40.4168", r.URL.Query().Get("latitude"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"temperature_2m":21.4,"relative_humidity_2m":48,"wind_speed_10m":11.2,"weather_code":1}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteo(OpenMeteoConfig{BaseURL: srv.URL, GeocodingBaseURL: srv.URL})
	res, err := p.Call(context.Background(), providers.Request{
		Query:  "weather",
		Params: map[string]any{"lat": 40.4168, "lon": -3.7038, "city": "Madrid"},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "21.4°C")
	assert.Contains(t, res.Content, "partly cloudy")
}

func TestWikipedia_SearchThenSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/w/rest.php/v1/search/page":
			assert.Equal(t, "go programming language", r.URL.Query().Get("q"))
			_, _ = w.Write([]byte(`{"pages":[{"title":"Go (programming language)","key":"Go_(programming_language)"}]}`))
		case "/api/rest_v1/page/summary/Go_(programming_language)":
			_, _ = w.Write([]byte(`{"title":"Go (programming language)","extract":"Go is a statically typed language.","content_urls":{"desktop":{"page":"https://en.wikipedia.org/wiki/Go"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewWikipedia(WikipediaConfig{BaseURL: srv.URL})
	res, err := p.Call(context.Background(), providers.Request{Query: "go programming language"})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "statically typed")
	assert.Equal(t, "https://en.wikipedia.org/wiki/Go", res.Data["url"])
}

func TestNominatim_ForwardAndReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/search":
			_, _ = w.Write([]byte(`[{"display_name":"Madrid, Spain","lat":"40.4168","lon":"-3.7038","type":"city"}]`))
		case "/reverse":
			_, _ = w.Write([]byte(`{"display_name":"Madrid, Spain","lat":"40.4168","lon":"-3.7038"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewNominatim(NominatimConfig{BaseURL: srv.URL})

	forward, err := p.Call(context.Background(), providers.Request{Query: "Madrid"})
	require.NoError(t, err)
	assert.Contains(t, forward.Content, "40.4168")

	reverse, err := p.Call(context.Background(), providers.Request{
		Params: map[string]any{"lat": 40.4168, "lon": -3.7038},
	})
	require.NoError(t, err)
	assert.Contains(t, reverse.Content, "Madrid, Spain")
}

func TestLibreTranslate_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"translatedText":"hola mundo","detectedLanguage":{"language":"en","confidence":97}}`))
	}))
	defer srv.Close()

	p := NewLibreTranslate(LibreTranslateConfig{BaseURL: srv.URL})
	res, err := p.Call(context.Background(), providers.Request{
		Query:  "hello world",
		Params: map[string]any{"target": "es"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hola mundo", res.Content)
	assert.Equal(t, "en", res.Data["detected_language"])
}

func TestLibreTranslate_MissingTarget(t *testing.T) {
	p := NewLibreTranslate(LibreTranslateConfig{BaseURL: "http://unused"})
	_, err := p.Call(context.Background(), providers.Request{Query: "hello"})
	require.Error(t, err)
	assert.False(t, providers.IsTransient(err))
}

func TestNews_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/everything", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":1,"articles":[{"title":"Go 1.24 released","description":"The Go team shipped a new release.","url":"https://example.com/go","publishedAt":"2025-02-11T10:00:00Z","source":{"name":"Example"}}]}`))
	}))
	defer srv.Close()

	p := NewNews(NewsConfig{APIKey: "test-key", BaseURL: srv.URL})
	res, err := p.Call(context.Background(), providers.Request{Query: "golang"})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "Go 1.24 released")
	assert.Equal(t, 1, res.Data["total_results"])
}

func TestTenor_NoResultsIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	p := NewTenor(TenorConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Call(context.Background(), providers.Request{Query: "nothing"})
	require.Error(t, err)
	assert.False(t, providers.IsTransient(err))
}

func TestOpenFDA_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drug/label.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"openfda":{"generic_name":["ASPIRIN"],"brand_name":["Bayer"]},"purpose":["Pain reliever"],"warnings":["Reye's syndrome warning."]}]}`))
	}))
	defer srv.Close()

	p := NewOpenFDA(OpenFDAConfig{BaseURL: srv.URL})
	res, err := p.Call(context.Background(), providers.Request{Query: "aspirin"})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "ASPIRIN")
	assert.Contains(t, res.Content, "Purpose: Pain reliever")
}

func TestServerErrorIsTransientAcrossAdapters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	adapters := []providers.Provider{
		NewWikipedia(WikipediaConfig{BaseURL: srv.URL}),
		NewNews(NewsConfig{APIKey: "k", BaseURL: srv.URL}),
		NewOpenMeteo(OpenMeteoConfig{BaseURL: srv.URL, GeocodingBaseURL: srv.URL}),
	}
	for _, p := range adapters {
		_, err := p.Call(context.Background(), providers.Request{Query: "anything"})
		require.Error(t, err, p.Name())
		assert.True(t, providers.IsTransient(err), p.Name())
	}
}
