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
	ollamaDefaultBaseURL = "http://localhost:11434"
	ollamaDefaultModel   = "llama3.2"
	ollamaTimeout        = 120 * time.Second
)

// OllamaConfig configures the local Ollama adapter.
type OllamaConfig struct {
	BaseURL  string
	Model    string
	Priority int
	Timeout  time.Duration
}

// Ollama answers chat queries through a local Ollama daemon. It has no
// credential and no daily quota; it is the usual last-resort LLM.
type Ollama struct {
	meta
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates the adapter.
func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ollamaDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = ollamaDefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = ollamaTimeout
	}
	return &Ollama{
		meta: meta{
			name:     "ollama",
			domain:   providers.DomainLLM,
			priority: cfg.Priority,
			keySet:   true, // local daemon, nothing to configure
		},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  newClient(cfg.Timeout),
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Call sends the query to /api/generate in non-streaming mode.
func (p *Ollama) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	start := time.Now()

	raw, err := json.Marshal(ollamaRequest{
		Model:  p.model,
		Prompt: req.Query,
		System: req.SystemPrompt,
		Stream: false,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	var apiResp ollamaResponse
	err = doJSON(ctx, p.client, p.name, http.MethodPost, p.baseURL+"/api/generate",
		map[string]string{"Content-Type": "application/json"}, bytes.NewReader(raw), &apiResp)
	if err != nil {
		return nil, err
	}
	if apiResp.Response == "" {
		return nil, fmt.Errorf("ollama: empty completion: %w", providers.ErrProviderTransient)
	}

	return &providers.Result{
		Content: apiResp.Response,
		Data:    map[string]any{"model": apiResp.Model},
		Elapsed: time.Since(start),
	}, nil
}
