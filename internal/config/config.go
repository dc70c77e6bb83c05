package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"

	defaultCacheTTL  = 60 * time.Second
	defaultGeocoder  = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "realty-backend/1.0"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	LogLevel            string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string

	CacheBackend string
	CacheTTL     time.Duration

	GeocoderURL       string
	GeocoderUserAgent string

	SendinblueAPIKey string // SENDINBLUE_API_KEY for new-lead emails (Brevo)
	MailFrom         string
	LeadNotifyEmail  string
	SiteURL          string // public site base, used for listing links in emails
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("CACHE_BACKEND", CacheBackendRedis)
	viper.SetDefault("CACHE_TTL_SECONDS", int(defaultCacheTTL/time.Second))
	viper.SetDefault("GEOCODER_URL", defaultGeocoder)
	viper.SetDefault("GEOCODER_USER_AGENT", defaultUserAgent)

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}

	ttl := time.Duration(viper.GetInt("CACHE_TTL_SECONDS")) * time.Second
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	backend := strings.ToLower(strings.TrimSpace(viper.GetString("CACHE_BACKEND")))
	if backend != CacheBackendMemory {
		backend = CacheBackendRedis
	}

	return &Config{
		Env:                 env,
		Port:                viper.GetString("PORT"),
		LogLevel:            viper.GetString("LOG_LEVEL"),
		SessionSecret:       viper.GetString("SESSION_SECRET"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
		CacheBackend:        backend,
		CacheTTL:            ttl,
		GeocoderURL:         strings.TrimSpace(viper.GetString("GEOCODER_URL")),
		GeocoderUserAgent:   viper.GetString("GEOCODER_USER_AGENT"),
		SendinblueAPIKey:    viper.GetString("SENDINBLUE_API_KEY"),
		MailFrom:            viper.GetString("MAIL_FROM"),
		LeadNotifyEmail:     viper.GetString("LEAD_NOTIFY_EMAIL"),
		SiteURL:             strings.TrimRight(strings.TrimSpace(viper.GetString("SITE_URL")), "/"),
	}, nil
}
