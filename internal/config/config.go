package config

import (
	"os"
	"strconv"
	"strings"

	"plan-gate-server/internal/domain"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort         string
	LogLevel           string
	LogFormat          string
	AppURL             string
	CORSAllowedOrigins []string

	SupabaseURL            string
	SupabaseAnonKey        string
	SupabaseServiceRoleKey string
	DatastoreDriver        string
	DatabaseURL            string

	StripeSecretKey     string
	StripeWebhookSecret string
	StaticPriceIDs      map[string]string
	StripeProductPrefix string
	StripeCurrency      string
	PriceCacheFile      string
	PriceCacheReadOnly  bool
	RedisURL            string

	GCPProjectID     string
	GCPLocation      string
	VertexTextModel  string
	VertexImageModel string
}

// priceEnvKeys maps catalog keys to the environment variables that pin them.
var priceEnvKeys = map[string]string{
	domain.PriceKey(domain.PlanPro, domain.IntervalMonth):       "STRIPE_PRICE_PRO_MONTHLY",
	domain.PriceKey(domain.PlanPro, domain.IntervalYear):        "STRIPE_PRICE_PRO_YEARLY",
	domain.PriceKey(domain.PlanLegendary, domain.IntervalMonth): "STRIPE_PRICE_LEGENDARY_MONTHLY",
	domain.PriceKey(domain.PlanLegendary, domain.IntervalYear):  "STRIPE_PRICE_LEGENDARY_YEARLY",
}

// PriceEnvKey returns the environment variable holding the price id for a
// catalog key.
func PriceEnvKey(key string) (string, bool) {
	name, ok := priceEnvKeys[key]
	return name, ok
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	return &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		ServerPort:         getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          getEnvOrDefault("LOG_FORMAT", "json"),
		AppURL:             strings.TrimRight(getEnvOrDefault("APP_URL", "http://localhost:3000"), "/"),
		CORSAllowedOrigins: getEnvListOrDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),

		SupabaseURL:            getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseAnonKey:        getEnvOrDefault("SUPABASE_ANON_KEY", ""),
		SupabaseServiceRoleKey: getEnvOrDefault("SUPABASE_SERVICE_ROLE_KEY", ""),
		DatastoreDriver:        strings.ToLower(getEnvOrDefault("DATASTORE_DRIVER", "supabase")),
		DatabaseURL:            getEnvOrDefault("DATABASE_URL", ""),

		StripeSecretKey:     getEnvOrDefault("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnvOrDefault("STRIPE_WEBHOOK_SECRET", ""),
		StaticPriceIDs:      staticPriceIDs(),
		StripeProductPrefix: getEnvOrDefault("STRIPE_PRODUCT_PREFIX", "BoilerKitt"),
		StripeCurrency:      strings.ToLower(getEnvOrDefault("STRIPE_CURRENCY", "usd")),
		PriceCacheFile:      getEnvOrDefault("PRICE_CACHE_FILE", "local/stripe.dev.json"),
		PriceCacheReadOnly:  getEnvBoolOrDefault("PRICE_CACHE_READ_ONLY", false),
		RedisURL:            getEnvOrDefault("REDIS_URL", ""),

		GCPProjectID:     getEnvOrDefault("GCP_PROJECT_ID", ""),
		GCPLocation:      getEnvOrDefault("GCP_LOCATION", "us-central1"),
		VertexTextModel:  getEnvOrDefault("VERTEX_TEXT_MODEL", "gemini-2.0-flash"),
		VertexImageModel: getEnvOrDefault("VERTEX_IMAGE_MODEL", "imagen-3.0-generate-002"),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetLogLevel returns the log level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetLogFormat returns the log output format
func (c *AppConfig) GetLogFormat() string {
	return c.LogFormat
}

// GetAppURL returns the public app URL
func (c *AppConfig) GetAppURL() string {
	return c.AppURL
}

// GetCORSAllowedOrigins returns the allowed CORS origins
func (c *AppConfig) GetCORSAllowedOrigins() []string {
	return c.CORSAllowedOrigins
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseAnonKey returns the Supabase anonymous key
func (c *AppConfig) GetSupabaseAnonKey() string {
	return c.SupabaseAnonKey
}

// GetSupabaseServiceRoleKey returns the Supabase service role key
func (c *AppConfig) GetSupabaseServiceRoleKey() string {
	return c.SupabaseServiceRoleKey
}

// GetDatastoreDriver returns the datastore driver
func (c *AppConfig) GetDatastoreDriver() string {
	return c.DatastoreDriver
}

// GetDatabaseURL returns the Postgres connection URL
func (c *AppConfig) GetDatabaseURL() string {
	return c.DatabaseURL
}

// GetStripeSecretKey returns the Stripe secret key
func (c *AppConfig) GetStripeSecretKey() string {
	return c.StripeSecretKey
}

// GetStripeWebhookSecret returns the Stripe webhook signing secret
func (c *AppConfig) GetStripeWebhookSecret() string {
	return c.StripeWebhookSecret
}

// GetStripeProductPrefix returns the Stripe product name prefix
func (c *AppConfig) GetStripeProductPrefix() string {
	return c.StripeProductPrefix
}

// GetStripeCurrency returns the Stripe currency
func (c *AppConfig) GetStripeCurrency() string {
	return c.StripeCurrency
}

// GetPriceCacheFile returns the price cache file path
func (c *AppConfig) GetPriceCacheFile() string {
	return c.PriceCacheFile
}

// IsPriceCacheReadOnly reports whether the price cache is read-only
func (c *AppConfig) IsPriceCacheReadOnly() bool {
	return c.PriceCacheReadOnly
}

// GetRedisURL returns the Redis URL
func (c *AppConfig) GetRedisURL() string {
	return c.RedisURL
}

// GetGCPProjectID returns the GCP project ID
func (c *AppConfig) GetGCPProjectID() string {
	return c.GCPProjectID
}

// GetGCPLocation returns the GCP location
func (c *AppConfig) GetGCPLocation() string {
	return c.GCPLocation
}

// GetVertexTextModel returns the Vertex AI text model
func (c *AppConfig) GetVertexTextModel() string {
	return c.VertexTextModel
}

// GetVertexImageModel returns the Vertex AI image model
func (c *AppConfig) GetVertexImageModel() string {
	return c.VertexImageModel
}

// GetStaticPriceIDs returns a copy of the configured catalog entries.
func (c *AppConfig) GetStaticPriceIDs() map[string]string {
	out := make(map[string]string, len(c.StaticPriceIDs))
	for k, v := range c.StaticPriceIDs {
		out[k] = v
	}
	return out
}

func staticPriceIDs() map[string]string {
	out := make(map[string]string)
	for key, env := range priceEnvKeys {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			out[key] = value
		}
	}
	return out
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
