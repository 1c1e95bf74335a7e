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

const openFDADefaultBaseURL = "https://api.fda.gov"

// OpenFDAConfig configures the drug-label adapter.
type OpenFDAConfig struct {
	APIKey   string // optional, raises the rate limit
	BaseURL  string
	Priority int
	Quota    int
	Timeout  time.Duration
}

// OpenFDA looks up drug labeling information through the openFDA API.
type OpenFDA struct {
	meta
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenFDA creates the adapter.
func NewOpenFDA(cfg OpenFDAConfig) *OpenFDA {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openFDADefaultBaseURL
	}
	return &OpenFDA{
		meta: meta{
			name:     "openfda",
			domain:   providers.DomainMedical,
			priority: cfg.Priority,
			quota:    cfg.Quota,
			keySet:   true,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  newClient(cfg.Timeout),
	}
}

type openFDAResponse struct {
	Results []struct {
		OpenFDA struct {
			BrandName   []string `json:"brand_name"`
			GenericName []string `json:"generic_name"`
		} `json:"openfda"`
		Purpose         []string `json:"purpose"`
		IndicationsUse  []string `json:"indications_and_usage"`
		Warnings        []string `json:"warnings"`
		AdverseReaction []string `json:"adverse_reactions"`
	} `json:"results"`
}

// Call searches drug labels for the topic (param "topic" or the query).
func (p *OpenFDA) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	start := time.Now()

	topic := paramString(req, "topic")
	if topic == "" {
		topic = req.Query
	}
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("openfda: missing topic: %w", providers.ErrProviderPermanent)
	}

	q := url.Values{}
	q.Set("search", fmt.Sprintf("openfda.generic_name:%q+openfda.brand_name:%q", topic, topic))
	q.Set("limit", "1")
	if p.apiKey != "" {
		q.Set("api_key", p.apiKey)
	}

	var apiResp openFDAResponse
	if err := getJSON(ctx, p.client, p.name, p.baseURL+"/drug/label.json?"+q.Encode(), nil, &apiResp); err != nil {
		return nil, err
	}
	if len(apiResp.Results) == 0 {
		return nil, fmt.Errorf("openfda: no label for %q: %w", topic, providers.ErrProviderPermanent)
	}

	label := apiResp.Results[0]
	name := topic
	if len(label.OpenFDA.GenericName) > 0 {
		name = label.OpenFDA.GenericName[0]
	} else if len(label.OpenFDA.BrandName) > 0 {
		name = label.OpenFDA.BrandName[0]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s drug label information.", name)
	appendLabelSection(&b, "Purpose", label.Purpose)
	appendLabelSection(&b, "Indications", label.IndicationsUse)
	appendLabelSection(&b, "Warnings", label.Warnings)
	appendLabelSection(&b, "Adverse reactions", label.AdverseReaction)

	return &providers.Result{
		Content: b.String(),
		Data: map[string]any{
			"name":         name,
			"brand_names":  label.OpenFDA.BrandName,
			"generic_name": label.OpenFDA.GenericName,
		},
		Elapsed: time.Since(start),
	}, nil
}

// appendLabelSection adds one labeled, truncated section. Label text
// runs long; only the lead of each section is useful in a summary.
func appendLabelSection(b *strings.Builder, title string, values []string) {
	if len(values) == 0 {
		return
	}
	text := values[0]
	if len(text) > 500 {
		text = text[:500] + "…"
	}
	fmt.Fprintf(b, "\n%s: %s", title, text)
}
