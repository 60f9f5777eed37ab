package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/goenrich/internal/cache"
	"github.com/hyperifyio/goenrich/internal/extraction"
	"github.com/hyperifyio/goenrich/internal/fetch"
	"github.com/hyperifyio/goenrich/internal/llm"
	"github.com/hyperifyio/goenrich/internal/metrics"
	"github.com/hyperifyio/goenrich/internal/pipeline"
)

// App owns the wired pipeline, caller policy and their resources.
type App struct {
	cfg      Config
	pipeline *pipeline.Pipeline
	enricher *Enricher
	closers  []func() error
}

// New builds every collaborator from cfg. Missing credentials are not an
// error: the extractor then reports itself unconfigured.
func New(ctx context.Context, cfg Config) (*App, error) {
	ApplyDefaults(&cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg}

	// Use a high-throughput HTTP client to avoid client-side throttling
	httpClient := newHighThroughputHTTPClient(0)

	provider, model, err := newProvider(ctx, cfg, httpClient)
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	extractor := extraction.New(provider, model)
	if cfg.RateLimitRPS > 0 {
		extractor.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}

	store, err := a.newStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	fetcher := &fetch.Client{
		HTTPClient: httpClient,
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.FetchTimeout,
	}
	a.pipeline = pipeline.New(fetcher, extractor, store)
	a.enricher = &Enricher{Pipeline: a.pipeline, Mode: cfg.Mode}

	metrics.Init(BuildVersion, cfg.LLMProvider, cfg.CacheBackend)
	log.Info().
		Str("provider", cfg.LLMProvider).
		Bool("configured", provider != nil).
		Str("mode", cfg.Mode).
		Str("cache", cfg.CacheBackend).
		Msg("enrichment pipeline ready")
	return a, nil
}

// newProvider returns a nil client when no credential is configured.
func newProvider(ctx context.Context, cfg Config, httpClient *http.Client) (llm.Client, string, error) {
	switch cfg.LLMProvider {
	case ProviderOpenAI:
		if strings.TrimSpace(cfg.LLMBaseURL) == "" && strings.TrimSpace(cfg.LLMAPIKey) == "" {
			log.Warn().Msg("LLM_BASE_URL and LLM_API_KEY are unset; live extraction is unconfigured")
			return nil, "", nil
		}
		p := llm.NewOpenAIProvider(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, httpClient)
		preflightModels(ctx, p, cfg.LLMModel)
		return p, cfg.LLMModel, nil
	default:
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			log.Warn().Msg("GEMINI_API_KEY is unset; live extraction is unconfigured")
			return nil, "", nil
		}
		p, err := llm.NewGeminiProvider(ctx, llm.GeminiConfig{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.GeminiModel,
			BaseURL:    cfg.GeminiBaseURL,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, "", err
		}
		return p, p.Model(), nil
	}
}

// preflightModels logs whether the configured model is served. Failures are
// only logged; some compatible servers do not implement listing.
func preflightModels(ctx context.Context, p llm.ModelLister, model string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	list, err := p.ListModels(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("model listing unavailable")
		return
	}
	for _, m := range list.Models {
		if m.ID == model {
			return
		}
	}
	if model != "" {
		log.Warn().Str("model", model).Int("available", len(list.Models)).Msg("configured model not listed by server")
	}
}

func (a *App) newStore(ctx context.Context) (cache.Store, error) {
	if a.cfg.CacheBackend != CacheRedis {
		s := cache.NewMemoryStore()
		if a.cfg.CacheTTL > 0 {
			s.TTL = a.cfg.CacheTTL
		}
		return s, nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := cache.NewRedisClient(pingCtx, cache.RedisConfig{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}
	s := cache.NewRedisStore(client)
	if a.cfg.CacheTTL > 0 {
		s.TTL = a.cfg.CacheTTL
	}
	a.closers = append(a.closers, s.Close)
	return s, nil
}

// Pipeline returns the live enrichment pipeline.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipeline }

// Enricher returns the caller-side policy wrapper.
func (a *App) Enricher() *Enricher { return a.enricher }

// Config returns the effective configuration.
func (a *App) Config() Config { return a.cfg }

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
