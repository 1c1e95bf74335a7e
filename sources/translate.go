// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/unigate/unigate/providers"
)

const libreTranslateDefaultBaseURL = "https://libretranslate.com"

// LibreTranslateConfig configures the translation adapter.
type LibreTranslateConfig struct {
	APIKey   string // optional on self-hosted instances
	BaseURL  string
	Priority int
	Quota    int
	Timeout  time.Duration
}

// LibreTranslate translates text through a LibreTranslate-compatible
// endpoint.
type LibreTranslate struct {
	meta
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewLibreTranslate creates the adapter.
func NewLibreTranslate(cfg LibreTranslateConfig) *LibreTranslate {
	if cfg.BaseURL == "" {
		cfg.BaseURL = libreTranslateDefaultBaseURL
	}
	return &LibreTranslate{
		meta: meta{
			name:     "libretranslate",
			domain:   providers.DomainTranslate,
			priority: cfg.Priority,
			quota:    cfg.Quota,
			keySet:   true,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  newClient(cfg.Timeout),
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText   string `json:"translatedText"`
	DetectedLanguage struct {
		Language   string  `json:"language"`
		Confidence float64 `json:"confidence"`
	} `json:"detectedLanguage"`
}

// Call translates the query text. Params: "target" (required ISO code)
// and "source" (default auto-detect).
func (p *LibreTranslate) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	start := time.Now()

	target := paramString(req, "target")
	if target == "" {
		target = req.Language
	}
	if target == "" {
		return nil, fmt.Errorf("libretranslate: missing target language: %w", providers.ErrProviderPermanent)
	}
	source := paramString(req, "source")
	if source == "" {
		source = "auto"
	}

	raw, err := json.Marshal(translateRequest{
		Q:      req.Query,
		Source: source,
		Target: target,
		APIKey: p.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("libretranslate: marshal request: %w", err)
	}

	var apiResp translateResponse
	err = doJSON(ctx, p.client, p.name, http.MethodPost, p.baseURL+"/translate",
		map[string]string{"Content-Type": "application/json"}, bytes.NewReader(raw), &apiResp)
	if err != nil {
		return nil, err
	}
	if apiResp.TranslatedText == "" {
		return nil, fmt.Errorf("libretranslate: empty translation: %w", providers.ErrProviderTransient)
	}

	return &providers.Result{
		Content: apiResp.TranslatedText,
		Data: map[string]any{
			"source":            source,
			"target":            target,
			"detected_language": apiResp.DetectedLanguage.Language,
		},
		Elapsed: time.Since(start),
	}, nil
}
