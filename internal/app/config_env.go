package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	setString := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	setString(&cfg.Addr, "ADDR")
	setString(&cfg.LLMProvider, "LLM_PROVIDER")
	setString(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&cfg.GeminiModel, "GEMINI_MODEL")
	setString(&cfg.GeminiBaseURL, "GEMINI_BASE_URL")
	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setString(&cfg.LLMAPIKey, "LLM_API_KEY")
	setString(&cfg.UserAgent, "FETCH_USER_AGENT")
	// NEXT_PUBLIC_ENRICHMENT_MODE is accepted so existing frontend .env files work unchanged
	setString(&cfg.Mode, "ENRICHMENT_MODE", "NEXT_PUBLIC_ENRICHMENT_MODE")
	setString(&cfg.CacheBackend, "CACHE_BACKEND")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.LogFormat, "LOG_FORMAT")

	if len(cfg.CORSAllow) == 0 {
		if s := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS")); s != "" {
			cfg.CORSAllow = splitList(s)
		}
	}

	if cfg.RedisDB == 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("REDIS_DB"))); err == nil && n > 0 {
			cfg.RedisDB = n
		}
	}
	if cfg.RateLimitRPS == 0 {
		if f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")), 64); err == nil && f > 0 {
			cfg.RateLimitRPS = f
		}
	}

	// Optional durations
	setDuration := func(dst *time.Duration, envKey string) {
		if *dst != 0 {
			return
		}
		if s := os.Getenv(envKey); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				*dst = d
			}
		}
	}
	setDuration(&cfg.FetchTimeout, "FETCH_TIMEOUT")
	setDuration(&cfg.CacheTTL, "CACHE_TTL")

	// Booleans
	setBool := func(dst *bool, envKey string) {
		if *dst {
			return
		}
		if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
			if s == "1" || s == "true" || s == "yes" || s == "on" {
				*dst = true
			}
		}
	}
	setBool(&cfg.DevRoutes, "ENRICH_DEV")
	setBool(&cfg.Verbose, "VERBOSE")
}

// ApplyDefaults fills the remaining zero fields with built-in defaults.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = ProviderGemini
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeLive
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = CacheMemory
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			list = append(list, v)
		}
	}
	return list
}
