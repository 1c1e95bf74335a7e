// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/unigate/unigate/providers"
)

const (
	bedrockDefaultModel     = "anthropic.claude-3-haiku-20240307-v1:0"
	bedrockDefaultMaxTokens = 1024
	bedrockAPIVersion       = "bedrock-2023-05-31"
)

// bedrockInvoker is the slice of the Bedrock runtime client we use;
// an interface so tests can stub the SDK.
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockConfig configures the AWS Bedrock adapter.
type BedrockConfig struct {
	Region   string
	Model    string
	Priority int
	Quota    int
}

// Bedrock answers chat queries through AWS Bedrock with SigV4
// authentication from the ambient AWS credential chain.
type Bedrock struct {
	meta
	client bedrockInvoker
	model  string
}

// NewBedrock creates the adapter. Credential resolution happens here;
// a failure leaves the provider unregistered rather than half-working.
func NewBedrock(ctx context.Context, cfg BedrockConfig) (*Bedrock, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("bedrock: region is required")
	}
	if cfg.Model == "" {
		cfg.Model = bedrockDefaultModel
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
	}

	return &Bedrock{
		meta: meta{
			name:     "bedrock",
			domain:   providers.DomainLLM,
			priority: cfg.Priority,
			quota:    cfg.Quota,
			keySet:   true,
		},
		client: bedrockruntime.NewFromConfig(awsCfg),
		model:  cfg.Model,
	}, nil
}

type bedrockAnthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type bedrockAnthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Call invokes the configured model with the Anthropic message body.
func (p *Bedrock) Call(ctx context.Context, req providers.Request) (*providers.Result, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = bedrockDefaultMaxTokens
	}
	raw, err := json.Marshal(bedrockAnthropicRequest{
		AnthropicVersion: bedrockAPIVersion,
		MaxTokens:        maxTokens,
		System:           req.SystemPrompt,
		Messages:         []anthropicMessage{{Role: "user", Content: req.Query}},
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshal request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		Body:        raw,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		// SDK errors carry throttling/availability semantics the
		// generic net-error classification already treats as
		// transient; wrap for provenance only.
		return nil, fmt.Errorf("bedrock: invoke %s: %w", p.model, err)
	}

	var apiResp bedrockAnthropicResponse
	if err := json.Unmarshal(output.Body, &apiResp); err != nil {
		return nil, fmt.Errorf("bedrock: decode response: %w", err)
	}
	if len(apiResp.Content) == 0 || apiResp.Content[0].Text == "" {
		return nil, fmt.Errorf("bedrock: empty completion: %w", providers.ErrProviderTransient)
	}

	return &providers.Result{
		Content: apiResp.Content[0].Text,
		Data: map[string]any{
			"model":       p.model,
			"stop_reason": apiResp.StopReason,
		},
		Elapsed: time.Since(start),
	}, nil
}
