package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port         string
	Env          string
	DatabaseURL  string
	SQLitePath   string
	SQLiteDriver string // "sqlite3" (cgo) or "sqlite" (pure Go)
	RedisURL     string

	AllowedOrigins []string
	MaxBodyBytes   int64

	// Room lifecycle
	RoomIdleTTL      time.Duration // 0 keeps rooms for the process lifetime
	RoomReapInterval time.Duration
	RoomMaxSegments  int // 0 means unbounded
	SendBuffer       int

	// Rasterization of archived rooms
	CanvasWidth  int
	CanvasHeight int
	LineWidth    float64

	MDNSEnabled bool

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SQLitePath:       getEnv("SQLITE_PATH", "./data/whiteboard.db"),
		SQLiteDriver:     getEnv("SQLITE_DRIVER", "sqlite3"),
		RedisURL:         os.Getenv("REDIS_URL"),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "*")),
		MaxBodyBytes:     getInt64("MAX_BODY_BYTES", 50<<20),
		RoomIdleTTL:      getDuration("ROOM_IDLE_TTL", 24*time.Hour),
		RoomReapInterval: getDuration("ROOM_REAP_INTERVAL", time.Minute),
		RoomMaxSegments:  int(getInt64("ROOM_MAX_SEGMENTS", 0)),
		SendBuffer:       int(getInt64("SEND_BUFFER", 256)),
		CanvasWidth:      int(getInt64("CANVAS_WIDTH", 1920)),
		CanvasHeight:     int(getInt64("CANVAS_HEIGHT", 1080)),
		LineWidth:        getFloat("LINE_WIDTH", 3),
		MDNSEnabled:      getEnv("MDNS_ENABLED", "false") == "true",
		AutoBlockEnabled: getEnv("AUTO_BLOCK_ENABLED", "false") == "true",
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		cfg.RateLimitWhitelist = splitList(whitelist)
	}

	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		panic("DATABASE_URL is required in production")
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt64(key string, defaultValue int64) int64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v >= 0 {
			return v
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			return v
		}
	}
	return defaultValue
}

// getDuration accepts Go durations ("90s", "24h") and "0" to disable.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if raw == "0" {
			return 0
		}
		if v, err := time.ParseDuration(raw); err == nil && v >= 0 {
			return v
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
