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

const (
	openAIDefaultBaseURL   = "https://api.openai.com"
	openAIDefaultModel     = "gpt-4o-mini"
	openAIDefaultMaxTokens = 1024
	openAITimeout          = 60 * time.Second
)

// OpenAIConfig configures the OpenAI chat adapter.
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Priority int
	Quota    int
	Timeout  time.Duration
}

// OpenAI answers chat queries through the chat completions API.
type OpenAI struct {
	meta
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAI creates the adapter. A missing API key still registers the
// provider; the registry just never selects it.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openAIDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = openAITimeout
	}
	return &OpenAI{
		meta: meta{
			name:     "openai",
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

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Call sends the query as a chat completion.
func (p *OpenAI) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = openAIDefaultMaxTokens
	}
	body := openAIRequest{Model: p.model, MaxTokens: maxTokens}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	body.Messages = append(body.Messages, openAIMessage{Role: "user", Content: req.Query})

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	var apiResp openAIResponse
	err = doJSON(ctx, p.client, p.name, http.MethodPost, p.baseURL+"/v1/chat/completions",
		map[string]string{
			"Authorization": "Bearer " + p.apiKey,
			"Content-Type":  "application/json",
		}, bytes.NewReader(raw), &apiResp)
	if err != nil {
		return nil, err
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices: %w", providers.ErrProviderTransient)
	}

	return &providers.Result{
		Content: apiResp.Choices[0].Message.Content,
		Data: map[string]any{
			"model":             apiResp.Model,
			"prompt_tokens":     apiResp.Usage.PromptTokens,
			"completion_tokens": apiResp.Usage.CompletionTokens,
		},
		Elapsed: time.Since(start),
	}, nil
}
