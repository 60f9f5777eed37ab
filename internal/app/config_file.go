package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
// Nested sections improve readability and map naturally to flags/env.
type FileConfig struct {
	Addr      string   `yaml:"addr" json:"addr"`
	Dev       bool     `yaml:"dev" json:"dev"`
	CORSAllow []string `yaml:"corsAllow" json:"corsAllow"`
	Mode      string   `yaml:"mode" json:"mode"`

	LLM struct {
		Provider     string  `yaml:"provider" json:"provider"`
		BaseURL      string  `yaml:"base" json:"base"`
		Model        string  `yaml:"model" json:"model"`
		APIKey       string  `yaml:"key" json:"key"`
		RateLimitRPS float64 `yaml:"rateLimitRPS" json:"rateLimitRPS"`
	} `yaml:"llm" json:"llm"`

	Gemini struct {
		APIKey  string `yaml:"key" json:"key"`
		Model   string `yaml:"model" json:"model"`
		BaseURL string `yaml:"base" json:"base"`
	} `yaml:"gemini" json:"gemini"`

	Fetch struct {
		UserAgent string        `yaml:"userAgent" json:"userAgent"`
		Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"fetch" json:"fetch"`

	Cache struct {
		Backend string        `yaml:"backend" json:"backend"`
		TTL     time.Duration `yaml:"ttl" json:"ttl"`
		Redis   struct {
			Addr     string `yaml:"addr" json:"addr"`
			Password string `yaml:"password" json:"password"`
			DB       int    `yaml:"db" json:"db"`
		} `yaml:"redis" json:"redis"`
	} `yaml:"cache" json:"cache"`

	Verbose   bool   `yaml:"verbose" json:"verbose"`
	LogFormat string `yaml:"logFormat" json:"logFormat"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are currently unset/zero in cfg. Flags should already have been parsed; this
// function lets file config supply values while preserving explicit flags.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
		}
	}
	setString(&cfg.Addr, fc.Addr)
	setString(&cfg.Mode, fc.Mode)
	setString(&cfg.LLMProvider, fc.LLM.Provider)
	setString(&cfg.LLMBaseURL, fc.LLM.BaseURL)
	setString(&cfg.LLMModel, fc.LLM.Model)
	setString(&cfg.LLMAPIKey, fc.LLM.APIKey)
	setString(&cfg.GeminiAPIKey, fc.Gemini.APIKey)
	setString(&cfg.GeminiModel, fc.Gemini.Model)
	setString(&cfg.GeminiBaseURL, fc.Gemini.BaseURL)
	setString(&cfg.UserAgent, fc.Fetch.UserAgent)
	setString(&cfg.CacheBackend, fc.Cache.Backend)
	setString(&cfg.RedisAddr, fc.Cache.Redis.Addr)
	setString(&cfg.RedisPassword, fc.Cache.Redis.Password)
	setString(&cfg.LogFormat, fc.LogFormat)

	if len(cfg.CORSAllow) == 0 && len(fc.CORSAllow) > 0 {
		cfg.CORSAllow = append([]string{}, fc.CORSAllow...)
	}
	if cfg.RateLimitRPS == 0 && fc.LLM.RateLimitRPS > 0 {
		cfg.RateLimitRPS = fc.LLM.RateLimitRPS
	}
	if cfg.FetchTimeout == 0 && fc.Fetch.Timeout > 0 {
		cfg.FetchTimeout = fc.Fetch.Timeout
	}
	if cfg.CacheTTL == 0 && fc.Cache.TTL > 0 {
		cfg.CacheTTL = fc.Cache.TTL
	}
	if cfg.RedisDB == 0 && fc.Cache.Redis.DB > 0 {
		cfg.RedisDB = fc.Cache.Redis.DB
	}
	if !cfg.DevRoutes && fc.Dev {
		cfg.DevRoutes = true
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig performs minimal schema validation. Missing credentials are
// not an error: live extraction then fails as unconfigured and callers fall
// back to synthetic data.
func ValidateConfig(cfg Config) error {
	switch cfg.LLMProvider {
	case "", ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("config: unknown llm provider %q (want gemini or openai)", cfg.LLMProvider)
	}
	switch cfg.Mode {
	case "", ModeLive, ModeMock:
	default:
		return fmt.Errorf("config: unknown enrichment mode %q (want live or mock)", cfg.Mode)
	}
	switch cfg.CacheBackend {
	case "", CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("config: unknown cache backend %q (want memory or redis)", cfg.CacheBackend)
	}
	if cfg.CacheBackend == CacheRedis && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: cache.redis.addr is required for the redis backend (or set REDIS_ADDR)")
	}
	if cfg.RateLimitRPS < 0 || cfg.FetchTimeout < 0 || cfg.CacheTTL < 0 || cfg.RedisDB < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	switch cfg.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: unknown log format %q (want console or json)", cfg.LogFormat)
	}
	return nil
}
