package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/weirdtangent/myaws"
)

const defaultChartAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Config is everything the process reads from its environment at startup.
type Config struct {
	APIBaseURL      string
	HTTPPort        int
	Debug           bool
	DefaultLocale   string
	DisplayTimezone *time.Location
	ShowFetchErrors bool
	TemplateDir     string
	StaticDir       string
	ChartAssetsHost string

	CookieAuthKey       []byte
	CookieEncryptionKey []byte
	CookieDomain        string
	CookieSecure        bool
	ElementIDKey        []byte

	AWSRegion       string
	AWSSecretName   string
	SessionTable    string
	CSPReportBucket string
}

func newConfigReader() *viper.Viper {
	v := viper.New()
	v.SetDefault("CURRENCY_API_URL", "")
	v.SetDefault("HTTP_PORT", 3001)
	v.SetDefault("DEBUG", false)
	v.SetDefault("DEFAULT_LOCALE", "en-US")
	v.SetDefault("DISPLAY_TIMEZONE", "UTC")
	v.SetDefault("SHOW_FETCH_ERRORS", false)
	v.SetDefault("TEMPLATE_DIR", "templates")
	v.SetDefault("STATIC_DIR", "static")
	v.SetDefault("CHART_ASSETS_HOST", defaultChartAssetsHost)
	v.SetDefault("COOKIE_AUTH_KEY", "")
	v.SetDefault("COOKIE_ENCRYPTION_KEY", "")
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("ELEMENT_ID_KEY", "")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_SECRET_NAME", "")
	v.SetDefault("SESSION_TABLE", "")
	v.SetDefault("CSP_REPORT_BUCKET", "")
	v.AutomaticEnv()
	return v
}

// loadConfig reads .env (when present) and the environment. It fails when
// the api base url is missing or unusable, or when a value cannot be parsed.
func loadConfig(ctx context.Context) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	v := newConfigReader()

	cfg := &Config{
		APIBaseURL:      v.GetString("CURRENCY_API_URL"),
		HTTPPort:        v.GetInt("HTTP_PORT"),
		Debug:           v.GetBool("DEBUG"),
		DefaultLocale:   v.GetString("DEFAULT_LOCALE"),
		ShowFetchErrors: v.GetBool("SHOW_FETCH_ERRORS"),
		TemplateDir:     v.GetString("TEMPLATE_DIR"),
		StaticDir:       v.GetString("STATIC_DIR"),
		ChartAssetsHost: v.GetString("CHART_ASSETS_HOST"),
		CookieDomain:    v.GetString("COOKIE_DOMAIN"),
		CookieSecure:    v.GetBool("COOKIE_SECURE"),
		AWSRegion:       v.GetString("AWS_REGION"),
		AWSSecretName:   v.GetString("AWS_SECRET_NAME"),
		SessionTable:    v.GetString("SESSION_TABLE"),
		CSPReportBucket: v.GetString("CSP_REPORT_BUCKET"),
	}

	if _, err := parseBaseURL(cfg.APIBaseURL); err != nil {
		return nil, err
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("HTTP_PORT out of range: %d", cfg.HTTPPort)
	}

	tz, err := time.LoadLocation(v.GetString("DISPLAY_TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("DISPLAY_TIMEZONE: %w", err)
	}
	cfg.DisplayTimezone = tz

	if _, ok := supportedLocale(cfg.DefaultLocale); !ok {
		zerolog.Ctx(ctx).Warn().Str("locale", cfg.DefaultLocale).Msg("unsupported DEFAULT_LOCALE, using en-US")
		cfg.DefaultLocale = "en-US"
	}

	cfg.CookieAuthKey = []byte(v.GetString("COOKIE_AUTH_KEY"))
	cfg.CookieEncryptionKey = []byte(v.GetString("COOKIE_ENCRYPTION_KEY"))
	cfg.ElementIDKey = []byte(v.GetString("ELEMENT_ID_KEY"))

	return cfg, nil
}

// loadSecrets overrides the cookie and element id keys with values from
// AWS Secrets Manager when a secret name is configured.
func loadSecrets(ctx context.Context, cfg *Config, awssess *session.Session) error {
	if cfg.AWSSecretName == "" || awssess == nil {
		return nil
	}

	for key, dest := range map[string]*[]byte{
		"cookie_auth_key":       &cfg.CookieAuthKey,
		"cookie_encryption_key": &cfg.CookieEncryptionKey,
		"element_id_key":        &cfg.ElementIDKey,
	} {
		value, err := myaws.AWSGetSecretKV(awssess, cfg.AWSSecretName, key)
		if err != nil {
			return fmt.Errorf("failed to retrieve secret %s: %w", key, err)
		}
		if value != nil && *value != "" {
			*dest = []byte(*value)
		}
	}

	zerolog.Ctx(ctx).Info().Str("secret", cfg.AWSSecretName).Msg("loaded secrets from AWS")
	return nil
}

// fillRandomCookieKeys gives the process throwaway cookie keys when none
// were configured; sessions then last only as long as the process.
func fillRandomCookieKeys(ctx context.Context, cfg *Config) error {
	if len(cfg.CookieAuthKey) == 0 {
		key, err := randomKey(64)
		if err != nil {
			return err
		}
		cfg.CookieAuthKey = key
		zerolog.Ctx(ctx).Warn().Msg("COOKIE_AUTH_KEY not set, using a random key")
	}
	if len(cfg.CookieEncryptionKey) == 0 {
		key, err := randomKey(32)
		if err != nil {
			return err
		}
		cfg.CookieEncryptionKey = key
	}
	return nil
}

func randomKey(n int) ([]byte, error) {
	key := make([]byte, n)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}
