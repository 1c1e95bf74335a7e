// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the Unigate gateway.
//
// The gateway aggregates third-party data and LLM providers behind a
// uniform HTTP API with per-provider quotas, circuit breaking, and
// multi-level response caching.
//
// Usage:
//
//	./gateway
//
// Environment Variables:
//
//	UNIGATE_CONFIG - path to the YAML config file (optional)
//	PORT / LISTEN_ADDR - HTTP listen address (default: 8080)
//	REDIS_URL - shared cache and quota backend (optional)
//	OPENAI_API_KEY, ANTHROPIC_API_KEY, NEWS_API_KEY, ... - provider keys
package main

import (
	"github.com/unigate/unigate/gateway"
)

func main() {
	gateway.Run()
}
