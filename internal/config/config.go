package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Catalog sources.
const (
	CatalogPostgres = "postgres"
	CatalogHTTP     = "http"
	CatalogFile     = "file"
)

// Quote stores.
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Single-flight guards.
const (
	GuardOff   = "off"
	GuardLocal = "local"
	GuardRedis = "redis"
)

// CatalogConfig selects and tunes the product catalog backend.
type CatalogConfig struct {
	Source      string
	URL         string
	APIKey      string
	File        string
	Timeout     time.Duration
	MaxAttempts int
}

// QuoteConfig tunes the quote pipeline and its cache.
type QuoteConfig struct {
	Store             string
	CacheTTL          time.Duration
	KeyPrefix         string
	SingleFlight      string
	LockTTL           time.Duration
	DefaultWeightLbs  float64
	DefaultDimensions string
	StoreTimeout      time.Duration
	CatalogDeadline   time.Duration
	JanitorInterval   time.Duration
}

// ObsConfig covers logging, metrics, tracing and profiling.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string
	ReadyTimeout     time.Duration
}

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	DBMaxConns         int32
	DBAutoMigrate      bool
	RedisURL           string
	CORSAllowedOrigins []string
	BodyLimitBytes     int64
	RateLimitPerMinute int
	SecurityHeaders    bool
	RateShopper        string
	ShutdownTimeout    time.Duration

	Catalog CatalogConfig
	Quote   QuoteConfig
	Obs     ObsConfig
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		DBMaxConns:         int32(parseInt(k.String("DB_MAX_CONNS"), 10)),
		DBAutoMigrate:      parseBool(k.String("DB_AUTO_MIGRATE"), false),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BodyLimitBytes:     int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20)),
		RateLimitPerMinute: parseInt(k.String("RATE_LIMIT_PER_MINUTE"), 120),
		SecurityHeaders:    parseBool(k.String("SECURE_HEADERS_ENABLED"), true),
		RateShopper:        lower(valueOrDefault(k.String("RATE_SHOPPER"), "none")),
		ShutdownTimeout:    parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
		Catalog: CatalogConfig{
			Source:      lower(valueOrDefault(k.String("CATALOG_SOURCE"), CatalogPostgres)),
			URL:         strings.TrimRight(strings.TrimSpace(k.String("CATALOG_URL")), "/"),
			APIKey:      strings.TrimSpace(k.String("CATALOG_API_KEY")),
			File:        strings.TrimSpace(k.String("CATALOG_FILE")),
			Timeout:     parseDuration(k.String("CATALOG_TIMEOUT"), "5s"),
			MaxAttempts: parseInt(k.String("CATALOG_MAX_ATTEMPTS"), 2),
		},
		Quote: QuoteConfig{
			Store:             lower(valueOrDefault(k.String("QUOTE_STORE"), StoreRedis)),
			CacheTTL:          parseDuration(k.String("QUOTE_CACHE_TTL"), "1800s"),
			KeyPrefix:         valueOrDefault(k.String("QUOTE_KEY_PREFIX"), "shipquote:quote:"),
			SingleFlight:      lower(valueOrDefault(k.String("QUOTE_SINGLE_FLIGHT"), GuardOff)),
			LockTTL:           parseDuration(k.String("QUOTE_LOCK_TTL"), "10s"),
			DefaultWeightLbs:  parseFloat(k.String("QUOTE_DEFAULT_WEIGHT_LBS"), 1),
			DefaultDimensions: valueOrDefault(k.String("QUOTE_DEFAULT_DIMENSIONS"), "6x4x4"),
			StoreTimeout:      parseDuration(k.String("QUOTE_STORE_TIMEOUT"), "750ms"),
			CatalogDeadline:   parseDuration(k.String("QUOTE_CATALOG_DEADLINE"), "5s"),
			JanitorInterval:   parseDuration(k.String("QUOTE_JANITOR_INTERVAL"), "10m"),
		},
		Obs: ObsConfig{
			LogFormat:        lower(valueOrDefault(k.String("OBS_LOG_FORMAT"), "json")),
			LogLevel:         lower(valueOrDefault(k.String("OBS_LOG_LEVEL"), "info")),
			MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "shipquote"),
			MetricsBuckets:   strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),
			TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:  lower(valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp")),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
			PprofEnabled:     parseBool(k.String("OBS_ENABLE_PPROF"), false),
			PprofUser:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPass:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
			ReadyTimeout:     parseDuration(k.String("HEALTH_READY_TIMEOUT"), "500ms"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	switch c.Quote.Store {
	case StoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when QUOTE_STORE=redis"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when QUOTE_STORE=postgres"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("QUOTE_STORE %q is not one of redis, postgres, memory", c.Quote.Store))
	}

	switch c.Catalog.Source {
	case CatalogPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when CATALOG_SOURCE=postgres"))
		}
	case CatalogHTTP:
		if c.Catalog.URL == "" {
			errs = append(errs, errors.New("CATALOG_URL is required when CATALOG_SOURCE=http"))
		}
	case CatalogFile:
		if c.Catalog.File == "" {
			errs = append(errs, errors.New("CATALOG_FILE is required when CATALOG_SOURCE=file"))
		}
	default:
		errs = append(errs, fmt.Errorf("CATALOG_SOURCE %q is not one of postgres, http, file", c.Catalog.Source))
	}

	switch c.Quote.SingleFlight {
	case GuardOff, GuardLocal:
	case GuardRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when QUOTE_SINGLE_FLIGHT=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("QUOTE_SINGLE_FLIGHT %q is not one of off, local, redis", c.Quote.SingleFlight))
	}

	switch c.RateShopper {
	case "none", "mock":
	default:
		errs = append(errs, fmt.Errorf("RATE_SHOPPER %q is not one of none, mock", c.RateShopper))
	}

	if c.Quote.CacheTTL <= 0 {
		errs = append(errs, errors.New("QUOTE_CACHE_TTL must be positive"))
	}
	if c.Quote.DefaultWeightLbs <= 0 {
		errs = append(errs, errors.New("QUOTE_DEFAULT_WEIGHT_LBS must be positive"))
	}
	if c.DBAutoMigrate && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required when DB_AUTO_MIGRATE is set"))
	}
	return errors.Join(errs...)
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// UsesRedis reports whether any component needs a Redis client.
func (c *Config) UsesRedis() bool {
	return c.Quote.Store == StoreRedis || c.Quote.SingleFlight == GuardRedis || c.RedisURL != ""
}

// UsesPostgres reports whether any component needs a database pool.
func (c *Config) UsesPostgres() bool {
	return c.Quote.Store == StorePostgres || c.Catalog.Source == CatalogPostgres
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func lower(value string) string {
	return strings.ToLower(value)
}

// parseDuration accepts Go durations or a bare number of seconds.
func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	if secs, err := strconv.Atoi(base); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests overrides environment variables for the duration of a Load call.
// An empty value unsets the variable.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
