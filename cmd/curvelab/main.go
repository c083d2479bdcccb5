package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ManiFed/curvelab/internal/config"
	"github.com/ManiFed/curvelab/internal/engine"
	"github.com/ManiFed/curvelab/internal/logger"
	"github.com/ManiFed/curvelab/internal/state"
	"github.com/ManiFed/curvelab/internal/types"
	"github.com/ManiFed/curvelab/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const DEFAULT_PARAMS_CONFIG_NAME = "default"

// main is the entry point for the curve discovery engine.
func main() {
	ticks := flag.Int("ticks", 0, "run a fixed number of generation ticks, print a report, and exit")
	reportOnly := flag.Bool("report", false, "print a report of the persisted state and exit")
	flag.Parse()

	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Curve Discovery Engine Starting...")

	// --- 2. Storage Backend ---
	store := openStore()
	defer store.Close()

	// --- 3. Engine Parameters ---
	params := loadParameters(store)

	// --- 4. Create Engine ---
	eng, err := engine.New(engine.Config{
		Params:   params,
		Store:    store,
		Interval: config.TickInterval,
		Seed:     config.RandomSeed,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine")
	}

	// One-shot modes: report or fixed batch, no server loop.
	if *reportOnly {
		printReport(eng)
		return
	}
	if *ticks > 0 {
		log.Info().Int("ticks", *ticks).Msg("Running one-shot batch")
		if err := eng.RunBatch(*ticks); err != nil {
			log.Fatal().Err(err).Msg("Batch run failed")
		}
		printReport(eng)
		return
	}

	// --- 5. Start Web Server ---
	webServer := web.NewWebServer(config.WebPort, eng, store)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting status API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 6. Run Engine Loop Until Shutdown ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info().Dur("interval", config.TickInterval).Msg("Starting engine loop")
	eng.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received, stopping engine")
	eng.Stop()
	printReport(eng)
}

// openStore builds the configured storage backend. Any durable backend that
// cannot be reached degrades to the in-memory store so the engine still runs.
func openStore() state.Store {
	switch config.StoreBackend {
	case "postgres":
		dbCfg := state.DBConfig{
			Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
			User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
			DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Error().Err(err).Msg("Failed to initialize database, falling back to in-memory store")
			return state.NewMemoryStore()
		}
		if err := state.EnsureSchema(); err != nil {
			log.Error().Err(err).Msg("Failed to ensure database schema, falling back to in-memory store")
			state.CloseDB()
			return state.NewMemoryStore()
		}
		store, err := state.NewPostgresStore()
		if err != nil {
			log.Error().Err(err).Msg("Failed to create postgres store, falling back to in-memory store")
			return state.NewMemoryStore()
		}
		return store

	case "sqlite":
		store, err := state.NewSQLiteStore(config.SQLitePath)
		if err != nil {
			log.Error().Err(err).Str("path", config.SQLitePath).Msg("Failed to open sqlite store, falling back to in-memory store")
			return state.NewMemoryStore()
		}
		return store

	default:
		log.Info().Msg("Running with in-memory state only")
		return state.NewMemoryStore()
	}
}

// loadParameters resolves the active engine parameters: the store's active
// set wins, then an optional YAML file, then the built-in defaults. A fresh
// parameter set is saved and activated so the version history starts at 1.
func loadParameters(store state.Store) types.EngineParameters {
	params, active, err := store.LoadActiveParameters(DEFAULT_PARAMS_CONFIG_NAME)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active parameters, using defaults")
	} else if active {
		log.Info().Msg("Engine parameters loaded from store")
		return params
	}

	params = config.DefaultEngineParameters
	if config.ParamsFile != "" {
		loaded, err := config.LoadParametersFile(config.ParamsFile)
		if err != nil {
			log.Warn().Err(err).Str("file", config.ParamsFile).Msg("Parameters file rejected, using defaults")
		} else {
			log.Info().Str("file", config.ParamsFile).Msg("Engine parameters loaded from file")
			params = loaded
		}
	}

	if version, err := store.SaveParameters(DEFAULT_PARAMS_CONFIG_NAME, params, true); err != nil {
		log.Warn().Err(err).Msg("Failed to save initial parameters")
	} else {
		log.Info().Int("version", version).Msg("Initial parameters saved and activated")
	}
	return params
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
