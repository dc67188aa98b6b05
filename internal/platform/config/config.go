package config

import (
	"os"
	"strconv"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr        string
	AdminToken  string
	DatabaseURL string
	RedisURL    string

	// StatutoryWaitDays is the minimum interval between pre-notice and final
	// notice. Regulators set the floor; seven days applies when nothing is
	// configured.
	StatutoryWaitDays int

	// DefaultDecision is applied when no rule in the matrix matches.
	DefaultDecision string

	// SweepEnabled turns on the waiting-period sweep loop. Correctness never
	// depends on it; it only surfaces elapsed windows.
	SweepEnabled bool
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	addr := os.Getenv("CLEARVET_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	waitDays := 7
	if raw := os.Getenv("CLEARVET_WAIT_DAYS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			waitDays = parsed
		}
	}

	defaultDecision := os.Getenv("CLEARVET_DEFAULT_DECISION")
	if defaultDecision == "" {
		defaultDecision = "manual_review"
	}

	return Config{
		Addr:              addr,
		AdminToken:        os.Getenv("CLEARVET_ADMIN_TOKEN"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		StatutoryWaitDays: waitDays,
		DefaultDecision:   defaultDecision,
		SweepEnabled:      os.Getenv("CLEARVET_SWEEP") == "true",
	}
}
