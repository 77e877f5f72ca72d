// Package config loads service configuration from the environment and
// defines the fixed event catalog the admission controller serves.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultCapacity is the seat ceiling applied to every cataloged event
// unless overridden via EVENT_CATALOG.
const DefaultCapacity = 120

// Event is one admissible workshop/event with its hard seat ceiling.
type Event struct {
	Key      string
	Capacity int
}

// Config holds all runtime settings. Every field has a local-development
// default so the service starts with an empty environment.
type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Catalog maps eventKey to its capacity. Admission is refused for
	// any key not present here.
	Catalog map[string]int

	// RedisAddr enables the seats-remaining cache when non-empty.
	RedisAddr     string
	RedisPassword string

	// JWTSecret signs/verifies admin bearer tokens.
	JWTSecret string

	// SMTP settings enable confirmation email when SMTPHost is non-empty.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// ReconcileInterval is the period of the background drift sweep;
	// zero disables it.
	ReconcileInterval time.Duration
}

// Load reads configuration from the environment, first loading a .env file
// if one is present (ignored when absent).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "registrations"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret"),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:      getEnv("SMTP_FROM", "registrations@portfest.local"),
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SMTP_PORT: %w", err)
	}
	cfg.SMTPPort = smtpPort

	cfg.ReconcileInterval, err = time.ParseDuration(getEnv("RECONCILE_INTERVAL", "10m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RECONCILE_INTERVAL: %w", err)
	}

	cfg.Catalog, err = ParseCatalog(getEnv("EVENT_CATALOG", DefaultCatalog))
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// DefaultCatalog lists the five events the service admits out of the box.
const DefaultCatalog = "hackproofing:120,prompt-to-product:120,full-stack-fusion:120,learn-how-to-think:120,port-pass:120"

// ParseCatalog parses a "key:capacity,key:capacity" catalog string. A bare
// "key" entry gets DefaultCapacity.
func ParseCatalog(raw string) (map[string]int, error) {
	catalog := make(map[string]int)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, capStr, found := strings.Cut(entry, ":")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("event catalog entry %q has an empty key", entry)
		}
		capacity := DefaultCapacity
		if found {
			var err error
			capacity, err = strconv.Atoi(strings.TrimSpace(capStr))
			if err != nil {
				return nil, fmt.Errorf("event catalog entry %q: capacity is not a number", entry)
			}
		}
		if capacity <= 0 {
			return nil, fmt.Errorf("event catalog entry %q: capacity must be positive", entry)
		}
		catalog[key] = capacity
	}
	if len(catalog) == 0 {
		return nil, fmt.Errorf("event catalog is empty")
	}
	return catalog, nil
}

// Events returns the catalog as a sorted slice for stable listings.
func (c Config) Events() []Event {
	events := make([]Event, 0, len(c.Catalog))
	for key, capacity := range c.Catalog {
		events = append(events, Event{Key: key, Capacity: capacity})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Key < events[j].Key })
	return events
}

// DSN builds a libpq-compatible connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
