// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

// Package sources contains the thin provider adapters. Each adapter
// maps the unified Request onto one upstream HTTP or SDK API, parses
// the reply into a Result, and classifies failures as transient or
// permanent at the boundary so the router can decide whether to retry.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/unigate/unigate/providers"
)

// DefaultTimeout is the per-adapter HTTP client timeout. Individual
// adapters override it where the upstream is known to be slower.
const DefaultTimeout = 10 * time.Second

// meta holds the static registry metadata every adapter carries.
type meta struct {
	name     string
	domain   providers.Domain
	priority int
	quota    int
	keySet   bool
}

func (m meta) Name() string             { return m.name }
func (m meta) Domain() providers.Domain { return m.domain }
func (m meta) Priority() int            { return m.priority }
func (m meta) DailyQuota() int          { return m.quota }
func (m meta) CredentialPresent() bool  { return m.keySet }

// newClient builds the small fixed HTTP client an adapter owns.
func newClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// getJSON performs a GET and decodes the 2xx body into out.
func getJSON(ctx context.Context, client *http.Client, name, url string, headers map[string]string, out any) error {
	return doJSON(ctx, client, name, http.MethodGet, url, headers, nil, out)
}

// doJSON performs one upstream round trip. Non-2xx statuses become
// *providers.APIError so retryability is decided from the status code;
// transport errors pass through untouched (net errors already classify
// as transient).
func doJSON(ctx context.Context, client *http.Client, name, method, url string, headers map[string]string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "unigate/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &providers.APIError{
			Provider:   name,
			StatusCode: resp.StatusCode,
			Message:    string(raw),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", name, err)
	}
	return nil
}

// paramString reads a string parameter with a query fallback.
func paramString(req providers.Request, key string) string {
	if v, ok := req.Params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// paramFloat reads a numeric parameter; JSON decoding hands numbers
// over as float64.
func paramFloat(req providers.Request, key string) (float64, bool) {
	v, ok := req.Params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
