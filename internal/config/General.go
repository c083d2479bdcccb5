package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Deployment configuration loaded from environment variables at startup.
// Storage is optional: with STORE_BACKEND=memory the engine runs entirely
// in-process, which is also the fallback whenever a durable store cannot be
// reached.
var (
	// StoreBackend selects the persistence layer: "postgres", "sqlite" or "memory".
	StoreBackend string

	// SQLitePath is the database file used by the sqlite backend.
	SQLitePath string

	// WebPort is the port the JSON status API listens on.
	WebPort string

	// TickInterval is the pause between generation ticks of the serve loop.
	TickInterval time.Duration

	// ParamsFile optionally points at a YAML file overriding the default
	// engine parameters on first run.
	ParamsFile string

	// RandomSeed seeds the engine RNG; 0 means seed from the clock.
	RandomSeed int64
)

// LoadConfig loads deployment configuration from environment variables and
// sets the package globals. Unset variables fall back to defaults that keep
// the engine runnable with no external collaborators.
func LoadConfig() error {
	log.Info().Msg("Loading deployment configuration from environment variables...")

	StoreBackend = getEnvOr("STORE_BACKEND", "memory")
	switch StoreBackend {
	case "postgres", "sqlite", "memory":
	default:
		return errors.New("STORE_BACKEND must be one of postgres, sqlite, memory; got: " + StoreBackend)
	}

	SQLitePath = getEnvOr("SQLITE_PATH", "curvelab.db")
	WebPort = getEnvOr("WEB_PORT", "8080")
	ParamsFile = getEnvOr("PARAMS_FILE", "")

	tickMs, err := getEnvAsIntOr("TICK_INTERVAL_MS", 250)
	if err != nil {
		return err
	}
	if tickMs <= 0 {
		return errors.New("TICK_INTERVAL_MS must be positive")
	}
	TickInterval = time.Duration(tickMs) * time.Millisecond

	RandomSeed, err = getEnvAsInt64Or("RNG_SEED", 0)
	if err != nil {
		return err
	}

	log.Debug().
		Str("StoreBackend", StoreBackend).
		Str("WebPort", WebPort).
		Dur("TickInterval", TickInterval).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnvOr retrieves a string environment variable with a fallback default.
func getEnvOr(key, def string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return def
}

// getEnvAsIntOr retrieves an environment variable as an int. Returns the
// default if unset, an error if set but invalid.
func getEnvAsIntOr(key string, def int) (int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return def, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt64Or retrieves an environment variable as an int64 with a default.
func getEnvAsInt64Or(key string, def int64) (int64, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return def, nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int64, got: " + valueStr)
	}
	return value, nil
}
