package app

import "time"

// Provider names accepted by LLMProvider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Enrichment modes accepted by Mode.
const (
	ModeLive = "live"
	ModeMock = "mock"
)

// Cache backends accepted by CacheBackend.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds runtime configuration for the application.
type Config struct {
	// HTTP server
	Addr      string
	DevRoutes bool
	CORSAllow []string

	// Extraction service
	LLMProvider   string
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	LLMBaseURL    string
	LLMModel      string
	LLMAPIKey     string
	// RateLimitRPS paces calls to the extraction service; 0 disables.
	RateLimitRPS float64

	// Fetcher
	UserAgent    string
	FetchTimeout time.Duration

	// Caller policy
	Mode string

	// Result cache
	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Behavior
	Verbose   bool
	LogFormat string
}
