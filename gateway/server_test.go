// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unigate/unigate/aggregate"
	"github.com/unigate/unigate/breaker"
	"github.com/unigate/unigate/cache"
	"github.com/unigate/unigate/classify"
	"github.com/unigate/unigate/pipeline"
	"github.com/unigate/unigate/providers"
	"github.com/unigate/unigate/quota"
	"github.com/unigate/unigate/router"
	"github.com/unigate/unigate/validate"
)

// stubProvider returns canned content for handler tests.
type stubProvider struct {
	name    string
	domain  providers.Domain
	content string
}

func (s *stubProvider) Name() string             { return s.name }
func (s *stubProvider) Domain() providers.Domain { return s.domain }
func (s *stubProvider) Priority() int            { return 1 }
func (s *stubProvider) DailyQuota() int          { return 0 }
func (s *stubProvider) CredentialPresent() bool  { return true }

func (s *stubProvider) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	return &providers.Result{Content: s.content, Data: map[string]any{"echo": req.Query}}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	registry := providers.NewRegistry()
	stubs := []*stubProvider{
		{name: "coingecko", domain: providers.DomainCryptoPrice,
			content: "Bitcoin is trading at $67,000, up 2% over the last day according to exchange data."},
		{name: "wikipedia", domain: providers.DomainEncyclopedia,
			content: "Bitcoin is a decentralized digital currency introduced in 2009 by an anonymous author."},
		{name: "newswire", domain: providers.DomainNews,
			content: "Markets digested a quiet session today with volumes close to seasonal averages."},
	}
	for _, p := range stubs {
		require.NoError(t, registry.Register(p))
	}

	ledger := quota.NewLedger(nil, func(string) int { return 0 }, time.UTC)
	breakers := breaker.NewSet(breaker.DefaultConfig())
	rt := router.New(registry, ledger, breakers, router.Config{
		Retry:       router.RetryConfig{MaxRetries: 1, BackoffBase: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
		CallTimeout: 200 * time.Millisecond,
	})
	agg := aggregate.New(aggregate.Config{PerLegTimeout: 200 * time.Millisecond, GroupDeadline: 500 * time.Millisecond})
	mlc := cache.NewMultiLevel(cache.DefaultConfig(), nil)
	p := pipeline.New(registry, classify.NewClassifier(registry), rt, agg, validate.New(), mlc, pipeline.Config{})

	return NewServer(p, registry, mlc, breakers, Config{})
}

func TestHealthEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestReadinessEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status    string               `json:"status"`
		Providers []providers.Snapshot `json:"providers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ready", body.Status)
	assert.Len(t, body.Providers, 3)
}

func TestChatEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	payload, _ := json.Marshal(pipeline.ChatRequest{Message: "bitcoin price today please"})
	resp, err := http.Post(srv.URL+"/api/chat", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		RequestID string                `json:"request_id"`
		Result    pipeline.ChatResponse `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.RequestID)
	assert.Equal(t, "coingecko", body.Result.Provider)
	assert.Contains(t, body.Result.Response, "Bitcoin is trading")
}

func TestChatEndpoint_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/chat", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatEndpoint_EmptyMessage(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	payload, _ := json.Marshal(pipeline.ChatRequest{Message: "   "})
	resp, err := http.Post(srv.URL+"/api/chat", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var envelope errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, http.StatusBadRequest, envelope.StatusCode)
	assert.NotEmpty(t, envelope.RequestID)
}

func TestCryptoPriceEndpoint_CachesSecondCall(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	get := func() dataEnvelope {
		resp, err := http.Get(srv.URL + "/api/crypto/price/bitcoin")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var envelope dataEnvelope
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		return envelope
	}

	first := get()
	assert.Equal(t, "coingecko", first.Source)
	assert.False(t, first.Cached)

	second := get()
	assert.True(t, second.Cached)
	assert.Equal(t, first.Content, second.Content)
}

func TestWeatherEndpoint_NoProviderIs503(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/weather?city=Madrid")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var envelope errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, http.StatusServiceUnavailable, envelope.StatusCode)
}

func TestNewsSearch_MissingQuery(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/news/search")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "client-supplied-id", resp.Header.Get("X-Request-ID"))
}

func TestAdminEndpoints(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/admin/cache/invalidate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "domain parameter is required")

	resp, err = http.Post(srv.URL+"/api/admin/cache/invalidate?domain=crypto-price", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/admin/providers")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Providers []providers.Snapshot `json:"providers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Providers, 3)
}

func TestSearchEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	payload, _ := json.Marshal(pipeline.SearchRequest{
		Query:      "latest market developments",
		Categories: []providers.Domain{providers.DomainNews},
	})
	resp, err := http.Post(srv.URL+"/api/search", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Result pipeline.SearchResponse `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body.Result.Results[providers.DomainNews])
	assert.Equal(t, []string{"newswire"}, body.Result.Results[providers.DomainNews].Succeeded)
	assert.GreaterOrEqual(t, body.Result.TotalResults, 1)
}
