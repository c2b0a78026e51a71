package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultGeminiModel   = "gemini-2.0-flash"
	DefaultEntitlementID = "cookflow Pro"
	DefaultConfigFile    = "config.toml"
)

type Config struct {
	Gemini    GeminiConfig    `toml:"gemini"`
	Billing   BillingConfig   `toml:"billing"`
	Store     StoreConfig     `toml:"store"`
	Fetch     FetchConfig     `toml:"fetch"`
	Grocery   GroceryConfig   `toml:"grocery"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	LogSink   LogSinkConfig   `toml:"logsink"`
	Azure     AzureConfig     `toml:"azure"`
}

type GeminiConfig struct {
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
	Backend  string `toml:"backend"`  // "rest", "sdk" or "mock"
	Endpoint string `toml:"endpoint"` // base URL, tests point this at httptest
	// StrictSchema sends a JSON schema for the recipe alongside the mime type hint.
	StrictSchema bool `toml:"strict_schema"`
}

type BillingConfig struct {
	EntitlementID string        `toml:"entitlement_id"`
	APIKey        string        `toml:"api_key"`
	APIKeyApple   string        `toml:"api_key_apple"`
	APIKeyGoogle  string        `toml:"api_key_google"`
	Platform      string        `toml:"platform"`
	Endpoint      string        `toml:"endpoint"`
	Timeout       time.Duration `toml:"timeout"`
}

// KeyFor returns the billing key for a platform, falling back to the shared key.
func (b BillingConfig) KeyFor(platform string) string {
	switch platform {
	case "ios":
		if b.APIKeyApple != "" {
			return b.APIKeyApple
		}
	case "android":
		if b.APIKeyGoogle != "" {
			return b.APIKeyGoogle
		}
	}
	return b.APIKey
}

type StoreConfig struct {
	Backend   string `toml:"backend"` // memory, file, sqlite, redis, azure
	Path      string `toml:"path"`
	RedisAddr string `toml:"redis_addr"`
	Container string `toml:"container"`
}

type FetchConfig struct {
	Timeout time.Duration `toml:"timeout"`
	Retries int           `toml:"retries"`
	Rate    float64       `toml:"rate"`
}

type GroceryConfig struct {
	Match string `toml:"match"` // "exact" or "fold"
}

type TelemetryConfig struct {
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

type AzureConfig struct {
	AccountName string `toml:"account_name"`
	AccountKey  string `toml:"account_key"`
}

// LogSinkConfig ships JSON logs to an append blob in the Azure account.
type LogSinkConfig struct {
	Container string `toml:"container"`
	BlobName  string `toml:"blob_name"`
}

func (c *Config) LogSinkEnabled() bool {
	return c.Azure.AccountName != "" && c.Azure.AccountKey != "" && c.LogSink.Container != ""
}

func Default() *Config {
	return &Config{
		Gemini: GeminiConfig{
			Model:    DefaultGeminiModel,
			Backend:  "rest",
			Endpoint: "https://generativelanguage.googleapis.com",
		},
		Billing: BillingConfig{
			EntitlementID: DefaultEntitlementID,
			Endpoint:      "https://api.revenuecat.com",
			Timeout:       10 * time.Second,
		},
		Store: StoreConfig{
			Backend:   "file",
			Path:      "data",
			Container: "cookflow",
		},
		Fetch: FetchConfig{
			Timeout: 30 * time.Second,
			Rate:    2,
		},
		Grocery: GroceryConfig{
			Match: "exact",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "cookflow",
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file, .env and
// the process environment, in that order of precedence (lowest first).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("COOKFLOW_CONFIG")
	}
	explicit := path != ""
	if path == "" {
		path = DefaultConfigFile
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || explicit {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY", "EXPO_PUBLIC_GEMINI_API_KEY")
	setString(&cfg.Gemini.Model, "GEMINI_MODEL")
	setString(&cfg.Gemini.Backend, "GEMINI_BACKEND")
	setString(&cfg.Gemini.Endpoint, "GEMINI_ENDPOINT")

	setString(&cfg.Billing.EntitlementID, "REVENUECAT_ENTITLEMENT_ID", "EXPO_PUBLIC_REVENUECAT_ENTITLEMENT_ID")
	setString(&cfg.Billing.APIKey, "REVENUECAT_API_KEY", "EXPO_PUBLIC_REVENUECAT_API_KEY")
	setString(&cfg.Billing.APIKeyApple, "REVENUECAT_API_KEY_APPLE", "EXPO_PUBLIC_REVENUECAT_API_KEY_APPLE")
	setString(&cfg.Billing.APIKeyGoogle, "REVENUECAT_API_KEY_GOOGLE", "EXPO_PUBLIC_REVENUECAT_API_KEY_GOOGLE")
	setString(&cfg.Billing.Platform, "REVENUECAT_PLATFORM")

	setString(&cfg.Store.Backend, "STORE_BACKEND")
	setString(&cfg.Store.Path, "STORE_PATH")
	setString(&cfg.Store.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Store.Container, "AZURE_STORAGE_CONTAINER")

	setString(&cfg.Grocery.Match, "GROCERY_MATCH")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Telemetry.ServiceName, "OTEL_SERVICE_NAME")

	setString(&cfg.Azure.AccountName, "AZURE_STORAGE_ACCOUNT_NAME")
	setString(&cfg.Azure.AccountKey, "AZURE_STORAGE_PRIMARY_ACCOUNT_KEY")
	setString(&cfg.LogSink.Container, "LOGSINK_CONTAINER")
	setString(&cfg.LogSink.BlobName, "LOGSINK_BLOB")

	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FETCH_TIMEOUT %q: %w", v, err)
		}
		cfg.Fetch.Timeout = d
	}
	if v := os.Getenv("FETCH_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FETCH_RETRIES %q: %w", v, err)
		}
		cfg.Fetch.Retries = n
	}
	if v := os.Getenv("FETCH_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid FETCH_RATE %q: %w", v, err)
		}
		cfg.Fetch.Rate = r
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Gemini.Backend {
	case "rest", "sdk", "mock":
	default:
		return fmt.Errorf("unknown gemini backend %q", c.Gemini.Backend)
	}
	switch c.Store.Backend {
	case "memory", "file", "sqlite", "redis", "azure":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Grocery.Match {
	case "exact", "fold":
	default:
		return fmt.Errorf("unknown grocery match %q", c.Grocery.Match)
	}
	if c.Fetch.Retries < 0 {
		return fmt.Errorf("fetch retries must not be negative")
	}
	if strings.TrimSpace(c.Gemini.Model) == "" {
		c.Gemini.Model = DefaultGeminiModel
	}
	return nil
}

// setString assigns the first non-empty environment variable among keys.
func setString(dst *string, keys ...string) {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			*dst = value
			return
		}
	}
}
