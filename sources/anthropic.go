// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/unigate/unigate/providers"
)

const (
	anthropicDefaultBaseURL   = "https://api.anthropic.com"
	anthropicAPIVersion       = "2023-06-01"
	anthropicDefaultModel     = "claude-3-5-haiku-20241022"
	anthropicDefaultMaxTokens = 1024
	anthropicTimeout          = 120 * time.Second
)

// AnthropicConfig configures the Anthropic messages adapter.
type AnthropicConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Priority int
	Quota    int
	Timeout  time.Duration
}

// Anthropic answers chat queries through the messages API.
type Anthropic struct {
	meta
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewAnthropic creates the adapter.
func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	if cfg.BaseURL == "" {
		cfg.BaseURL = anthropicDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = anthropicDefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = anthropicTimeout
	}
	return &Anthropic{
		meta: meta{
			name:     "anthropic",
			domain:   providers.DomainLLM,
			priority: cfg.Priority,
			quota:    cfg.Quota,
			keySet:   cfg.APIKey != "",
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  newClient(cfg.Timeout),
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Call sends the query as a messages request.
func (p *Anthropic) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	body := anthropicRequest{
		Model:     p.model,
		MaxTokens: maxTokens,
		System:    req.SystemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Query}},
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	var apiResp anthropicResponse
	err = doJSON(ctx, p.client, p.name, http.MethodPost, p.baseURL+"/v1/messages",
		map[string]string{
			"x-api-key":         p.apiKey,
			"anthropic-version": anthropicAPIVersion,
			"Content-Type":      "application/json",
		}, bytes.NewReader(raw), &apiResp)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("anthropic: empty completion: %w", providers.ErrProviderTransient)
	}

	return &providers.Result{
		Content: text.String(),
		Data: map[string]any{
			"model":         apiResp.Model,
			"stop_reason":   apiResp.StopReason,
			"input_tokens":  apiResp.Usage.InputTokens,
			"output_tokens": apiResp.Usage.OutputTokens,
		},
		Elapsed: time.Since(start),
	}, nil
}
