package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Env      string
	HTTPAddr string
	GRPCAddr string

	// VenuesFile overrides the built-in venue table when set.
	VenuesFile string
	// Location is the venues' civil time zone; "today" is computed in it.
	Location *time.Location

	AllowedOrigins []string
	RatePerSecond  float64
	RateBurst      int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	JobsEnabled    bool
	CompletionSpec string
}

func (c *AppConfig) Production() bool { return c.Env == "production" }

// LoadEnvFile loads a .env file when present. Variables already set win.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func LoadAppConfig() (*AppConfig, error) {
	tz := getEnv("VENUE_TZ", "America/Santiago")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid VENUE_TZ %q: %w", tz, err)
	}

	cfg := &AppConfig{
		Env:            strings.ToLower(getEnv("APP_ENV", "development")),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:       getEnv("GRPC_ADDR", ":50051"),
		VenuesFile:     getEnv("VENUES_FILE", ""),
		Location:       loc,
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RatePerSecond:  getEnvFloat("RATE_LIMIT_RPS", 20),
		RateBurst:      getEnvInt("RATE_LIMIT_BURST", 40),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		RedisChannel:   getEnv("REDIS_CHANNEL", ""),
		JobsEnabled:    getEnvBool("JOBS_ENABLED", false),
		CompletionSpec: getEnv("JOBS_COMPLETION_SPEC", "0 5 * * *"),
	}

	if cfg.HTTPAddr == "" && cfg.GRPCAddr == "" {
		return nil, fmt.Errorf("invalid app config: HTTP_ADDR and GRPC_ADDR are both empty")
	}
	if cfg.RateBurst < 0 || cfg.RatePerSecond < 0 {
		return nil, fmt.Errorf("invalid app config: rate limit must not be negative")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
