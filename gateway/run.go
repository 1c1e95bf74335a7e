// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/unigate/unigate/aggregate"
	"github.com/unigate/unigate/breaker"
	"github.com/unigate/unigate/cache"
	"github.com/unigate/unigate/classify"
	"github.com/unigate/unigate/config"
	"github.com/unigate/unigate/pipeline"
	"github.com/unigate/unigate/providers"
	"github.com/unigate/unigate/quota"
	"github.com/unigate/unigate/router"
	"github.com/unigate/unigate/sources"
	"github.com/unigate/unigate/validate"
)

// Run loads configuration, wires the full gateway stack, and serves
// until SIGINT or SIGTERM.
func Run() {
	cfg, err := config.Load(os.Getenv("UNIGATE_CONFIG"))
	if err != nil {
		log.Fatalf("[Gateway] config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := newRedisClient(ctx, cfg.Redis.URL)

	registry := providers.NewRegistry()
	registerSources(ctx, registry, cfg)

	ledger := quota.NewLedger(rdb, quotaFunc(registry), cfg.ResetLocation())
	breakers := breaker.NewSet(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         time.Duration(cfg.Breaker.CooldownSeconds) * time.Second,
		HalfOpenProbes:   cfg.Breaker.HalfOpenProbes,
	})
	rt := router.New(registry, ledger, breakers, router.Config{
		Retry: router.RetryConfig{
			MaxRetries:  *cfg.Router.MaxRetries,
			BackoffBase: time.Duration(cfg.Router.RetryBackoffBaseMs) * time.Millisecond,
		},
		CallTimeout: time.Duration(cfg.Router.CallTimeoutSeconds) * time.Second,
	})
	agg := aggregate.New(aggregate.Config{
		PerLegTimeout: time.Duration(cfg.Aggregator.PerLegTimeoutSeconds) * time.Second,
		GroupDeadline: time.Duration(cfg.Aggregator.GroupDeadlineSeconds) * time.Second,
	})
	mlc := cache.NewMultiLevel(cache.Config{
		L1MaxSize: cfg.Cache.L1MaxSize,
		L1TTL:     time.Duration(cfg.Cache.L1TTLSeconds) * time.Second,
		L2TTL:     time.Duration(cfg.Cache.L2TTLSeconds) * time.Second,
	}, rdb)

	p := pipeline.New(registry, classify.NewClassifier(registry), rt, agg, validate.New(), mlc, pipeline.Config{
		Persona:        cfg.Pipeline.Persona,
		SynthesizeDeep: cfg.Pipeline.SynthesizeDeep,
	})

	srv := NewServer(p, registry, mlc, breakers, Config{
		ListenAddr:     cfg.Server.ListenAddr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	})

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("[Gateway] server: %v", err)
	}
}

// newRedisClient connects to Redis when a URL is configured. The
// gateway degrades to L1-only caching and process-local quotas when
// Redis is absent or unreachable at startup.
func newRedisClient(ctx context.Context, url string) *redis.Client {
	if url == "" {
		log.Printf("[Gateway] REDIS_URL not set, running with in-memory cache and quotas")
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[Gateway] WARNING: invalid REDIS_URL, falling back to in-memory: %v", err)
		return nil
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("[Gateway] WARNING: Redis unreachable at startup, continuing anyway: %v", err)
	} else {
		log.Printf("[Gateway] Connected to Redis")
	}
	return rdb
}

// quotaFunc adapts registry metadata into the ledger's budget lookup.
func quotaFunc(registry *providers.Registry) quota.QuotaFunc {
	return func(name string) int {
		p, err := registry.Get(name)
		if err != nil {
			return 0
		}
		return p.DailyQuota()
	}
}

// registerSources constructs and registers every enabled provider
// adapter. Adapters without hard credential requirements (Ollama,
// Open-Meteo, Wikipedia, Nominatim, stocks) register whenever their
// block is enabled; credentialed adapters additionally need a key.
func registerSources(ctx context.Context, registry *providers.Registry, cfg *config.Config) {
	register := func(p providers.Provider) {
		if err := registry.Register(p); err != nil {
			log.Printf("[Gateway] WARNING: register %s: %v", p.Name(), err)
		}
	}

	if pc, ok := cfg.Provider("openai"); ok && pc.APIKey != "" {
		register(sources.NewOpenAI(sources.OpenAIConfig{
			APIKey: pc.APIKey, BaseURL: pc.BaseURL, Model: pc.Model,
			Priority: pc.Priority, Quota: pc.DailyQuota,
		}))
	}
	if pc, ok := cfg.Provider("anthropic"); ok && pc.APIKey != "" {
		register(sources.NewAnthropic(sources.AnthropicConfig{
			APIKey: pc.APIKey, BaseURL: pc.BaseURL, Model: pc.Model,
			Priority: pc.Priority, Quota: pc.DailyQuota,
		}))
	}
	if pc, ok := cfg.Provider("bedrock"); ok {
		b, err := sources.NewBedrock(ctx, sources.BedrockConfig{
			Region: pc.Region, Model: pc.Model,
			Priority: pc.Priority, Quota: pc.DailyQuota,
		})
		if err != nil {
			log.Printf("[Gateway] WARNING: Bedrock unavailable, skipping: %v", err)
		} else {
			register(b)
		}
	}
	if pc, ok := cfg.Provider("ollama"); ok {
		register(sources.NewOllama(sources.OllamaConfig{
			BaseURL: pc.BaseURL, Model: pc.Model, Priority: pc.Priority,
		}))
	}
	if pc, ok := cfg.Provider("coingecko"); ok {
		register(sources.NewCoinGecko(sources.CoinGeckoConfig{
			APIKey: pc.APIKey, BaseURL: pc.BaseURL,
			Priority: pc.Priority, Quota: pc.DailyQuota,
		}))
	}
	if pc, ok := cfg.Provider("stocks"); ok {
		quotes := sources.NewStockQuote(sources.StockQuoteConfig{
			BaseURL: pc.BaseURL, Priority: pc.Priority, Quota: pc.DailyQuota,
		})
		register(quotes)
		register(sources.NewMarketSummary(quotes, pc.Priority))
	}
	if pc, ok := cfg.Provider("openmeteo"); ok {
		register(sources.NewOpenMeteo(sources.OpenMeteoConfig{
			BaseURL: pc.BaseURL, Priority: pc.Priority, Quota: pc.DailyQuota,
		}))
	}
	if pc, ok := cfg.Provider("newsapi"); ok && pc.APIKey != "" {
		register(sources.NewNews(sources.NewsConfig{
			APIKey: pc.APIKey, BaseURL: pc.BaseURL,
			Priority: pc.Priority, Quota: pc.DailyQuota,
		}))
	}
	if pc, ok := cfg.Provider("wikipedia"); ok {
		register(sources.NewWikipedia(sources.WikipediaConfig{
			BaseURL: pc.BaseURL, Priority: pc.Priority, Quota: pc.DailyQuota,
		}))
	}
	if pc, ok := cfg.Provider("nominatim"); ok {
		register(sources.NewNominatim(sources.NominatimConfig{
			BaseURL: pc.BaseURL, Priority: pc.Priority, Quota: pc.DailyQuota,
		}))
	}
	if pc, ok := cfg.Provider("libretranslate"); ok {
		register(sources.NewLibreTranslate(sources.LibreTranslateConfig{
			APIKey: pc.APIKey, BaseURL: pc.BaseURL,
			Priority: pc.Priority, Quota: pc.DailyQuota,
		}))
	}
	if pc, ok := cfg.Provider("tenor"); ok && pc.APIKey != "" {
		register(sources.NewTenor(sources.TenorConfig{
			APIKey: pc.APIKey, BaseURL: pc.BaseURL,
			Priority: pc.Priority, Quota: pc.DailyQuota,
		}))
	}
	if pc, ok := cfg.Provider("openfda"); ok {
		register(sources.NewOpenFDA(sources.OpenFDAConfig{
			APIKey: pc.APIKey, BaseURL: pc.BaseURL,
			Priority: pc.Priority, Quota: pc.DailyQuota,
		}))
	}

	names := make([]string, 0, registry.Len())
	for _, s := range registry.SnapshotAll() {
		names = append(names, s.Name)
	}
	log.Printf("[Gateway] Registered %d providers: %v", len(names), names)
}
