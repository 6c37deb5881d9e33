package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every environment-driven option the service recognises.
type Config struct {
	AppEnv         string
	HTTPListenAddr string
	LogLevel       string
	LogFormat      string

	MetricsNamespace string

	// Database: either a full URL or discrete parts.
	DatabaseURL string
	DBSchema    string

	DBMaxConns       int32
	DBIdleTimeout    time.Duration
	DBConnectTimeout time.Duration

	IngestionAPIKey string

	MetaAccessToken              string
	MetaAdAccountID              string
	MetaAvailableBalanceOverride *float64

	WhatsAppBusinessAccountID string
	WhatsAppPhoneNumberIDs    []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	SyncMinInterval time.Duration
}

// Load reads configuration from the environment. The database connection is
// the only hard requirement; everything else degrades per endpoint.
func Load() (Config, error) {
	cfg := Config{
		AppEnv:                    envOr("APP_ENV", "production"),
		HTTPListenAddr:            envOr("HTTP_LISTEN_ADDR", ":8080"),
		LogLevel:                  envOr("LOG_LEVEL", "info"),
		LogFormat:                 envOr("LOG_FORMAT", "text"),
		MetricsNamespace:          envOr("METRICS_NAMESPACE", "adtrack"),
		DatabaseURL:               strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBSchema:                  envOr("DB_SCHEMA", "rastreio"),
		DBMaxConns:                10,
		DBIdleTimeout:             30 * time.Second,
		DBConnectTimeout:          5 * time.Second,
		IngestionAPIKey:           strings.TrimSpace(os.Getenv("INGESTION_API_KEY")),
		MetaAccessToken:           strings.TrimSpace(os.Getenv("META_ACCESS_TOKEN")),
		MetaAdAccountID:           strings.TrimSpace(os.Getenv("META_AD_ACCOUNT_ID")),
		WhatsAppBusinessAccountID: strings.TrimSpace(os.Getenv("WHATSAPP_BUSINESS_ACCOUNT_ID")),
		RedisAddr:                 envOr("REDIS_ADDR", ""),
		RedisPassword:             os.Getenv("REDIS_PASSWORD"),
		SyncMinInterval:           time.Minute,
	}

	if cfg.DatabaseURL == "" {
		u, err := discreteDatabaseURL()
		if err != nil {
			return Config{}, err
		}
		cfg.DatabaseURL = u
	}

	if v := strings.TrimSpace(os.Getenv("META_AVAILABLE_BALANCE_OVERRIDE")); v != "" {
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
		if err != nil || parsed < 0 {
			return Config{}, fmt.Errorf("invalid META_AVAILABLE_BALANCE_OVERRIDE: %q", v)
		}
		cfg.MetaAvailableBalanceOverride = &parsed
	}

	for _, key := range []string{"WHATSAPP_PHONE_NUMBER_ID_1", "WHATSAPP_PHONE_NUMBER_ID_2"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			cfg.WhatsAppPhoneNumberIDs = append(cfg.WhatsAppPhoneNumberIDs, v)
		}
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REDIS_DB: %q", v)
		}
		cfg.RedisDB = db
	}
	cfg.RedisTLS = boolEnv("REDIS_TLS")

	return cfg, nil
}

// MetaConfigured reports whether ads-platform credentials are present.
func (c Config) MetaConfigured() bool {
	return c.MetaAccessToken != "" && c.MetaAdAccountID != ""
}

// WhatsAppConfigured reports whether the messaging sync job can run.
func (c Config) WhatsAppConfigured() bool {
	return c.MetaAccessToken != "" && c.WhatsAppBusinessAccountID != "" && len(c.WhatsAppPhoneNumberIDs) > 0
}

func discreteDatabaseURL() (string, error) {
	host := strings.TrimSpace(os.Getenv("DB_HOST"))
	name := strings.TrimSpace(os.Getenv("DB_NAME"))
	user := strings.TrimSpace(os.Getenv("DB_USER"))
	password := os.Getenv("DB_PASSWORD")
	if host == "" || name == "" || user == "" || password == "" {
		return "", fmt.Errorf("database not configured: set DATABASE_URL or DB_HOST/DB_PORT/DB_NAME/DB_USER/DB_PASSWORD")
	}
	port := envOr("DB_PORT", "5432")
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid DB_PORT: %q", port)
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, password),
		Host:   host + ":" + port,
		Path:   "/" + name,
	}
	return u.String(), nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func boolEnv(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
