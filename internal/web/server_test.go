package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManiFed/curvelab/internal/config"
	"github.com/ManiFed/curvelab/internal/engine"
	"github.com/ManiFed/curvelab/internal/state"
	"github.com/ManiFed/curvelab/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, ticks int) *WebServer {
	t.Helper()

	p := config.DefaultEngineParameters
	p.PopulationSize = 6
	p.TrainingPaths = 2
	p.EvalPaths = 1
	p.PathSteps = 32

	store := state.NewMemoryStore()
	eng, err := engine.New(engine.Config{
		Params:   p,
		Store:    store,
		Interval: 10 * time.Millisecond,
		Seed:     1,
	})
	require.NoError(t, err)
	require.NoError(t, eng.RunBatch(ticks))

	return NewWebServer("0", eng, store)
}

func doRequest(ws *WebServer, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	ws.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	ws := testServer(t, 0)

	rec := doRequest(ws, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "OK", payload["status"])
}

func TestStatusEndpointListsEveryRegime(t *testing.T) {
	ws := testServer(t, 2)

	rec := doRequest(ws, http.MethodGet, "/api/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Generation int                   `json:"generation"`
		Regimes    []types.RegimeSummary `json:"regimes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 2, payload.Generation)
	assert.Len(t, payload.Regimes, len(types.KnownRegimeIDs()))
}

func TestChampionEndpoints(t *testing.T) {
	ws := testServer(t, 3)

	rec := doRequest(ws, http.MethodGet, "/api/champions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var champs map[types.RegimeID]types.Candidate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &champs))
	require.NotEmpty(t, champs)

	for regime := range champs {
		rec = doRequest(ws, http.MethodGet, "/api/champions/"+string(regime), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		break
	}

	rec = doRequest(ws, http.MethodGet, "/api/champions/sideways", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchiveAndAnalyticsEndpoints(t *testing.T) {
	ws := testServer(t, 10)

	for _, path := range []string{
		"/api/archive",
		"/api/archive/by-regime",
		"/api/families",
		"/api/embedding",
		"/api/activity",
	} {
		rec := doRequest(ws, http.MethodGet, path, nil)
		assert.Equalf(t, http.StatusOK, rec.Code, "path %s", path)
	}

	rec := doRequest(ws, http.MethodGet, "/api/archive/by-regime", nil)
	var byRegime map[types.RegimeID]types.PopulationState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &byRegime))
	for _, id := range types.KnownRegimeIDs() {
		assert.Contains(t, byRegime, id)
	}
}

func TestSnapshotRoundTripOverHTTP(t *testing.T) {
	leader := testServer(t, 4)
	follower := testServer(t, 0)

	rec := doRequest(leader, http.MethodGet, "/api/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(follower, http.MethodPost, "/api/snapshot", rec.Body.Bytes())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(follower, http.MethodGet, "/api/status", nil)
	var payload struct {
		Generation int `json:"generation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 4, payload.Generation)
}

func TestAdoptSnapshotRejectsStaleAndMalformed(t *testing.T) {
	ws := testServer(t, 3)

	stale := ws.engine.Snapshot()
	stale.Generation = 0
	body, err := json.Marshal(stale)
	require.NoError(t, err)

	rec := doRequest(ws, http.MethodPost, "/api/snapshot", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(ws, http.MethodPost, "/api/snapshot", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSHeadersPresent(t *testing.T) {
	ws := testServer(t, 0)

	rec := doRequest(ws, http.MethodGet, "/api/status", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestArchiveLimitParam(t *testing.T) {
	ws := testServer(t, 10)

	rec := doRequest(ws, http.MethodGet, "/api/archive?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.LessOrEqual(t, payload.Count, 1)
}
