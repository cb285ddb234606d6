// Package config loads runtime settings from environment variables.
//
// Callers load a .env file (github.com/joho/godotenv) before calling Load;
// real environment variables always win over .env entries.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every runtime setting of the server.
type Config struct {
	Port       int
	DBPath     string
	StaticDir  string
	AppBaseURL string // CORS origin allowed to send credentials

	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	OpenAITemperature float32

	CookieSecure bool
	SessionTTL   time.Duration

	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Only enable it behind a reverse proxy that overwrites those headers.
	TrustProxy bool

	GlobalRateRPS   float64 // 0 disables the global throttle
	GlobalRateBurst int

	MetricsEnabled bool
	LogLevel       slog.Level
}

// Load reads the environment. Unset keys take their defaults; malformed
// values are reported together in the returned error.
func Load() (Config, error) {
	var errs []error

	cfg := Config{
		Port:              getInt("PORT", 3000, &errs),
		DBPath:            getenv("DB_PATH", "data/chatwrapper.db"),
		StaticDir:         getenv("STATIC_DIR", "public"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       getenv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		OpenAITemperature: float32(getFloat("OPENAI_TEMPERATURE", 0.4, &errs)),
		CookieSecure:      getBool("COOKIE_SECURE", false, &errs),
		SessionTTL:        getDuration("SESSION_TTL", 30*24*time.Hour, &errs),
		TrustProxy:        getBool("TRUST_PROXY", false, &errs),
		GlobalRateRPS:     getFloat("GLOBAL_RATE_RPS", 20, &errs),
		GlobalRateBurst:   getInt("GLOBAL_RATE_BURST", 40, &errs),
		MetricsEnabled:    getBool("METRICS_ENABLED", true, &errs),
	}
	cfg.AppBaseURL = getenv("APP_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port))

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	return cfg, errors.Join(errs...)
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH must not be empty"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.GlobalRateRPS < 0 {
		errs = append(errs, errors.New("GLOBAL_RATE_RPS must not be negative"))
	}
	if c.GlobalRateRPS > 0 && c.GlobalRateBurst <= 0 {
		errs = append(errs, errors.New("GLOBAL_RATE_BURST must be positive when the throttle is enabled"))
	}
	return errors.Join(errs...)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func getFloat(key string, def float64, errs *[]error) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a number", key, v))
		return def
	}
	return f
}

func getBool(key string, def bool, errs *[]error) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}
