// Package config reads the service settings from the environment.
package config

import (
	"fmt"
	"log"
	"strconv"
	"time"

	potassium "github.com/bananalabs-oss/potassium/config"
	"github.com/joho/godotenv"
)

type Config struct {
	JWTSecret    string
	ServiceToken string
	DatabaseURL  string
	Host         string
	Port         string

	Location           *time.Location
	ArchiveInterval    time.Duration
	RosterPollInterval time.Duration
	EnforceMaxPlayers  bool

	AllowedEmailDomain string
	SessionCookie      string

	MapboxToken     string
	MapboxBaseURL   string
	RedisURL        string
	GeocodeCacheTTL time.Duration
}

// Load reads an optional .env file, then the environment. JWT_SECRET and
// SERVICE_TOKEN are required; everything else has a default.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded .env")
	}

	cfg := &Config{
		JWTSecret:          potassium.RequireEnv("JWT_SECRET"),
		ServiceToken:       potassium.RequireEnv("SERVICE_TOKEN"),
		DatabaseURL:        potassium.EnvOrDefault("DATABASE_URL", "sqlite://powkie.db"),
		Host:               potassium.EnvOrDefault("HOST", "0.0.0.0"),
		Port:               potassium.EnvOrDefault("PORT", "8004"),
		AllowedEmailDomain: potassium.EnvOrDefault("ALLOWED_EMAIL_DOMAIN", "college.harvard.edu"),
		SessionCookie:      potassium.EnvOrDefault("SESSION_COOKIE", "powkie_session"),
		MapboxToken:        potassium.EnvOrDefault("MAPBOX_TOKEN", ""),
		MapboxBaseURL:      potassium.EnvOrDefault("MAPBOX_BASE_URL", "https://api.mapbox.com"),
		RedisURL:           potassium.EnvOrDefault("REDIS_URL", ""),
	}

	var err error
	tz := potassium.EnvOrDefault("TIMEZONE", "America/New_York")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}
	if cfg.ArchiveInterval, err = duration("ARCHIVE_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	if cfg.RosterPollInterval, err = duration("ROSTER_POLL_INTERVAL", "10s"); err != nil {
		return nil, err
	}
	if cfg.GeocodeCacheTTL, err = duration("GEOCODE_CACHE_TTL", "720h"); err != nil {
		return nil, err
	}

	raw := potassium.EnvOrDefault("ENFORCE_MAX_PLAYERS", "false")
	if cfg.EnforceMaxPlayers, err = strconv.ParseBool(raw); err != nil {
		return nil, fmt.Errorf("invalid ENFORCE_MAX_PLAYERS %q: %w", raw, err)
	}

	return cfg, nil
}

func duration(key, def string) (time.Duration, error) {
	raw := potassium.EnvOrDefault(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return d, nil
}
