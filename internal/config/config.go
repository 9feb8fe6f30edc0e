package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported shared store drivers.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// StoreConfig selects and addresses the shared listing store.
type StoreConfig struct {
	Driver          string
	DatabaseURL     string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
}

// CrawlConfig holds browser and spider tuning.
type CrawlConfig struct {
	Headless          bool
	ChromePath        string
	SearchBaseURL     string
	SearchLanguage    string
	CookiesFile       string
	DiagnosticsDir    string
	NavigationTimeout time.Duration
	ResultsTimeout    time.Duration
	DetailTimeout     time.Duration
	ScrollIterations  int
	ScrollPause       time.Duration
	DetailConcurrency int
	DetailDelay       time.Duration
	NavigationRetries int
	PhoneRegion       string
	UserAgents        []string
}

// Config aggregates application-wide configuration values.
type Config struct {
	Port            string
	LogLevel        string
	LogDevelopment  bool
	IDTokenAudience string
	RunCallbackURL  string
	RateLimitScrape RateLimitConfig
	Store           StoreConfig
	Crawl           CrawlConfig
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "9000"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogDevelopment:  parseBool(getEnv("LOG_DEVELOPMENT", "false"), false),
		IDTokenAudience: os.Getenv("ID_TOKEN_AUDIENCE"),
		RunCallbackURL:  os.Getenv("RUN_CALLBACK_URL"),
		Store: StoreConfig{
			Driver:          strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
			DatabaseURL:     os.Getenv("DATABASE_URL"),
			MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase:   getEnv("MONGO_DATABASE", "google_maps"),
			MongoCollection: getEnv("MONGO_COLLECTION", "places"),
		},
		Crawl: CrawlConfig{
			Headless:          parseBool(getEnv("HEADLESS", "true"), true),
			ChromePath:        os.Getenv("CHROME_PATH"),
			SearchBaseURL:     getEnv("SEARCH_BASE_URL", "https://www.google.com/maps/search/"),
			SearchLanguage:    getEnv("SEARCH_LANGUAGE", "en"),
			CookiesFile:       getEnv("COOKIES_FILE", "cookies.json"),
			DiagnosticsDir:    getEnv("DIAGNOSTICS_DIR", "data/diagnostics"),
			NavigationTimeout: parseDuration(getEnv("NAVIGATION_TIMEOUT", "60s"), 60*time.Second),
			ResultsTimeout:    parseDuration(getEnv("RESULTS_TIMEOUT", "120s"), 120*time.Second),
			DetailTimeout:     parseDuration(getEnv("DETAIL_TIMEOUT", "10s"), 10*time.Second),
			ScrollIterations:  parseInt(getEnv("SCROLL_ITERATIONS", "4"), 4),
			ScrollPause:       parseDuration(getEnv("SCROLL_PAUSE", "2s"), 2*time.Second),
			DetailConcurrency: parseInt(getEnv("DETAIL_CONCURRENCY", "4"), 4),
			DetailDelay:       parseDuration(getEnv("DETAIL_DELAY", "3s"), 3*time.Second),
			NavigationRetries: parseInt(getEnv("NAVIGATION_RETRIES", "0"), 0),
			PhoneRegion:       strings.ToUpper(getEnv("PHONE_REGION", "NP")),
			UserAgents:        splitList(os.Getenv("USER_AGENTS")),
		},
	}

	rl, err := parseRateLimit(getEnv("RATE_LIMIT_SCRAPE", "5/min"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SCRAPE value: %w", err)
	}
	cfg.RateLimitScrape = rl

	switch cfg.Store.Driver {
	case StorePostgres, StoreMongo, StoreMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.Store.Driver)
	}
	if cfg.Crawl.DetailConcurrency <= 0 {
		return nil, fmt.Errorf("DETAIL_CONCURRENCY must be positive, got %d", cfg.Crawl.DetailConcurrency)
	}
	if cfg.Crawl.NavigationTimeout <= 0 {
		return nil, fmt.Errorf("NAVIGATION_TIMEOUT must be positive, got %s", cfg.Crawl.NavigationTimeout)
	}
	if cfg.Crawl.ScrollIterations < 0 || cfg.Crawl.NavigationRetries < 0 {
		return nil, fmt.Errorf("SCROLL_ITERATIONS and NAVIGATION_RETRIES must not be negative")
	}

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseDuration(input string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(input)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func parseInt(input string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(input string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(input))
	if err != nil {
		return fallback
	}
	return b
}

func splitList(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
