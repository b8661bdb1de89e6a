// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the coordinator reads from the environment.
// godotenv autoload in cmd/server populates the environment from .env.
type Config struct {
	Addr string

	// GracePeriod is how long a session waits for a disconnected player to
	// reconnect before declaring forfeit.
	GracePeriod time.Duration

	// TimeControls is the enumerated set of accepted timePerSide values,
	// in seconds.
	TimeControls []int

	RedisAddr       string
	SettlementQueue string
	PostgresURL     string
}

// Load reads the environment and applies defaults.
func Load() *Config {
	return &Config{
		Addr:            ":" + getEnv("ARENA_PORT", "8080"),
		GracePeriod:     getEnvDuration("ARENA_GRACE_PERIOD", 30*time.Second),
		TimeControls:    getEnvInts("ARENA_TIME_CONTROLS", []int{60, 180, 300, 600}),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		SettlementQueue: getEnv("SETTLEMENT_QUEUE_NAME", "arena_settlements"),
		PostgresURL:     os.Getenv("DATABASE_URL"),
	}
}

// AllowsTimeControl reports whether seconds is an accepted timePerSide.
func (c *Config) AllowsTimeControl(seconds int) bool {
	for _, tc := range c.TimeControls {
		if tc == seconds {
			return true
		}
	}
	return false
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func getEnvInts(key string, def []int) []int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return def
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return def
	}
	return out
}
