package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Engine    EngineConfig
	Extract   ExtractConfig
	Output    OutputConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance used by the dynamic
// strategy.
type BrowserConfig struct {
	// Enabled launches a browser at startup. Without it only the static
	// strategy is available.
	Enabled bool // default: true

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 4

	// Proxy is the proxy URL for all browser traffic.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// ScraperConfig controls page acquisition.
type ScraperConfig struct {
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// ListingWait bounds how long the dynamic strategy waits for the first
	// listing block to appear.
	ListingWait time.Duration // default: 15s

	// SettleTimeout bounds the post-scroll wait for lazy-loaded blocks.
	SettleTimeout time.Duration // default: 2s

	// UserAgent and AcceptLanguage are sent by both strategies.
	UserAgent      string
	AcceptLanguage string // default: "en-US,en;q=0.9"

	// BlockedResourceTypes lists resource types the browser never loads.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// EngineConfig controls strategy selection and the auto dispatcher.
type EngineConfig struct {
	// DefaultStrategy is used when a caller does not name one.
	DefaultStrategy string // default: "auto"

	// EscalationDelays is the staged start delay for static and dynamic
	// under the auto strategy.
	EscalationDelays []time.Duration // default: [0s, 3s]

	// HTTPTimeout is the deadline for the static engine.
	HTTPTimeout time.Duration // default: 10s

	// MemoryTTL is how long the winning engine is remembered per host.
	MemoryTTL time.Duration // default: 24h
}

// ExtractConfig controls listing extraction.
type ExtractConfig struct {
	// Backend is the query backend: "css" or "xpath".
	Backend string // default: "css"

	// LayoutFile optionally replaces the built-in Amazon search layout.
	LayoutFile string

	// DefaultCurrency is assumed for prices without a marker.
	DefaultCurrency string // default: "USD"

	// RatingScale is the upper bound of accepted ratings.
	RatingScale float64 // default: 5
}

// OutputConfig controls persistence for the CLI.
type OutputConfig struct {
	Path string // default: "products.csv"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CacheConfig controls the listings response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 500

	// TTL is the hard expiry applied by the background sweep.
	TTL time.Duration // default: 1h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SHELFSCAN_HOST", "0.0.0.0"),
			Port: envIntOr("SHELFSCAN_PORT", 8080),
			Mode: envOr("SHELFSCAN_MODE", "release"),
		},
		Browser: BrowserConfig{
			Enabled:    envBoolOr("SHELFSCAN_BROWSER", true),
			Headless:   envBoolOr("SHELFSCAN_HEADLESS", true),
			MaxPages:   envIntOr("SHELFSCAN_MAX_PAGES", 4),
			Proxy:      os.Getenv("SHELFSCAN_PROXY"),
			NoSandbox:  envBoolOr("SHELFSCAN_NO_SANDBOX", false),
			BrowserBin: os.Getenv("SHELFSCAN_BROWSER_BIN"),
		},
		Scraper: ScraperConfig{
			DefaultTimeout: envDurationOr("SHELFSCAN_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:     envDurationOr("SHELFSCAN_MAX_TIMEOUT", 120*time.Second),
			ListingWait:    envDurationOr("SHELFSCAN_LISTING_WAIT", 15*time.Second),
			SettleTimeout:  envDurationOr("SHELFSCAN_SETTLE_TIMEOUT", 2*time.Second),
			UserAgent: envOr("SHELFSCAN_USER_AGENT",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"),
			AcceptLanguage: envOr("SHELFSCAN_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			BlockedResourceTypes: envSliceOr("SHELFSCAN_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Engine: EngineConfig{
			DefaultStrategy:  envOr("SHELFSCAN_STRATEGY", "auto"),
			EscalationDelays: envDurationSliceOr("SHELFSCAN_ESCALATION_DELAYS", []time.Duration{0, 3 * time.Second}),
			HTTPTimeout:      envDurationOr("SHELFSCAN_HTTP_TIMEOUT", 10*time.Second),
			MemoryTTL:        envDurationOr("SHELFSCAN_MEMORY_TTL", 24*time.Hour),
		},
		Extract: ExtractConfig{
			Backend:         envOr("SHELFSCAN_BACKEND", "css"),
			LayoutFile:      os.Getenv("SHELFSCAN_LAYOUT_FILE"),
			DefaultCurrency: envOr("SHELFSCAN_DEFAULT_CURRENCY", "USD"),
			RatingScale:     envFloatOr("SHELFSCAN_RATING_SCALE", 5),
		},
		Output: OutputConfig{
			Path: envOr("SHELFSCAN_OUTPUT", "products.csv"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SHELFSCAN_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SHELFSCAN_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SHELFSCAN_RATE_RPS", 2.0),
			Burst:             envIntOr("SHELFSCAN_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SHELFSCAN_CACHE_MAX_ENTRIES", 500),
			TTL:        envDurationOr("SHELFSCAN_CACHE_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("SHELFSCAN_LOG_LEVEL", "info"),
			Format: envOr("SHELFSCAN_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		return splitList(v)
	}
	return fallback
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var result []time.Duration
	for _, p := range splitList(v) {
		if d, err := time.ParseDuration(p); err == nil {
			result = append(result, d)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

// splitList splits a comma-separated value and drops blank items.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
