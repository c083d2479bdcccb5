package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/ManiFed/curvelab/internal/engine"
	"github.com/ManiFed/curvelab/internal/logger"
	"github.com/ManiFed/curvelab/internal/state"
	"github.com/ManiFed/curvelab/internal/types"
	"github.com/gorilla/mux"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the discovery engine's state over HTTP for dashboards and
// cooperating front-ends.
type WebServer struct {
	router *mux.Router
	port   string
	engine *engine.Engine
	store  state.Store
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, eng *engine.Engine, store state.Store) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		engine: eng,
		store:  store,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/status", ws.handleGetStatus).Methods("GET")
	api.HandleFunc("/champions", ws.handleGetChampions).Methods("GET")
	api.HandleFunc("/champions/{regime}", ws.handleGetRegimeChampion).Methods("GET")
	api.HandleFunc("/archive", ws.handleGetArchive).Methods("GET")
	api.HandleFunc("/archive/by-regime", ws.handleGetArchiveByRegime).Methods("GET")
	api.HandleFunc("/families", ws.handleGetFamilies).Methods("GET")
	api.HandleFunc("/embedding", ws.handleGetEmbedding).Methods("GET")
	api.HandleFunc("/activity", ws.handleGetActivity).Methods("GET")
	api.HandleFunc("/snapshot", ws.handleGetSnapshot).Methods("GET")
	api.HandleFunc("/snapshot", ws.handleAdoptSnapshot).Methods("POST")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns comprehensive server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Get runtime memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	storeHealthy := true
	if err := ws.store.Ping(); err != nil {
		storeHealthy = false
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !storeHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":            runtime.Version(),
			"goroutines_count":   runtime.NumGoroutine(),
			"total_alloc_bytes":  memStats.TotalAlloc,
			"heap_objects_count": memStats.HeapObjects,
			"alloc_bytes":        memStats.Alloc,
			"sys_bytes":          memStats.Sys,
			"gc_cycles":          memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "curvelab-discovery-engine",
			"version": "1.0.0",
		},
		"engine_status": map[string]interface{}{
			"running":       ws.engine.Running(),
			"generation":    ws.engine.Generation(),
			"store_healthy": storeHealthy,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetStatus returns per-regime population summaries
func (ws *WebServer) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"generation": ws.engine.Generation(),
		"running":    ws.engine.Running(),
		"regimes":    ws.engine.Status(),
		"timestamp":  time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetChampions returns the current champion of every populated regime
func (ws *WebServer) handleGetChampions(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.Champions())
}

// handleGetRegimeChampion returns a single regime's champion
func (ws *WebServer) handleGetRegimeChampion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	regime := types.RegimeID(vars["regime"])

	if _, ok := types.RegimeByID(regime); !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Unknown regime")
		return
	}

	champ, ok := ws.engine.Champions()[regime]
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "Regime has no champion yet")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, champ)
}

// handleGetArchive returns archived candidates, newest-admitted last
func (ws *WebServer) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	archive := ws.engine.Archive()

	limit := len(archive)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit < limit {
			limit = parsedLimit
		}
	}
	archive = archive[len(archive)-limit:]

	response := map[string]interface{}{
		"candidates": archive,
		"count":      len(archive),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetArchiveByRegime returns the archive grouped with an entry for
// every known regime
func (ws *WebServer) handleGetArchiveByRegime(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.ArchiveByRegime())
}

// handleGetFamilies returns per-family aggregate statistics
func (ws *WebServer) handleGetFamilies(w http.ResponseWriter, r *http.Request) {
	families := ws.engine.FamilySummaries()
	response := map[string]interface{}{
		"families": families,
		"count":    len(families),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetEmbedding returns the archive's 2-D feature projection
func (ws *WebServer) handleGetEmbedding(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.Embedding())
}

// handleGetActivity returns recent activity events, newest first
func (ws *WebServer) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 500 {
			limit = parsedLimit
		}
	}

	events := ws.engine.Activity(limit)
	response := map[string]interface{}{
		"events": events,
		"count":  len(events),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSnapshot publishes a bounded snapshot for cooperating processes
func (ws *WebServer) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.Snapshot())
}

// handleAdoptSnapshot adopts a more advanced remote snapshot
func (ws *WebServer) handleAdoptSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap types.EngineSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Malformed snapshot payload")
		return
	}

	if err := ws.engine.AdoptSnapshot(snap); err != nil {
		webLogger.Warn().Err(err).Msg("Snapshot adoption rejected")
		ws.writeErrorResponse(w, http.StatusConflict, err.Error())
		return
	}

	response := map[string]interface{}{
		"adopted":    true,
		"generation": snap.Generation,
		"timestamp":  time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
