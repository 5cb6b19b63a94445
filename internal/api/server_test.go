package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectsentinel/sentinel-go/internal/conf"
	"github.com/projectsentinel/sentinel-go/internal/correlator"
	"github.com/projectsentinel/sentinel-go/internal/detector"
	"github.com/projectsentinel/sentinel-go/internal/emitter"
	"github.com/projectsentinel/sentinel-go/internal/record"
)

var base = time.Date(2025, 8, 13, 16, 0, 0, 0, time.UTC)

func testServer(t *testing.T) (*Server, *emitter.Store, *correlator.Registry) {
	t.Helper()

	registry := correlator.NewRegistry()
	manager := correlator.NewManager(conf.CorrelatorSettings{
		Window: conf.WindowSettings{Policy: conf.WindowPolicyTumbling, Duration: 30 * time.Second, Grace: 5 * time.Second},
	}, registry, nil, func(*correlator.Window) {})

	store := emitter.NewStore()
	s := New(conf.WebServerSettings{Enabled: true, Port: "0"}, store, registry, manager, nil)
	return s, store, registry
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func emitSample(store *emitter.Store) {
	em := emitter.New(nil, store)
	em.EmitWindow(&correlator.Context{
		StationID:   "SCC1",
		WindowStart: base,
		WindowEnd:   base.Add(30 * time.Second),
	}, []detector.Payload{
		detector.QueueLength{Station: "SCC1", CustomerCount: 5},
		detector.WaitTime{Station: "SCC1", DwellSeconds: 320},
	})
}

func TestHandleDashboard(t *testing.T) {
	t.Parallel()
	s, store, registry := testServer(t)
	registry.Observe(record.QueueSample{Timestamp: base, StationID: "SCC1", CustomerCount: 3, Status: record.StatusActive})
	emitSample(store)

	rec := get(t, s, "/api/v1/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)

	var d Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	require.Len(t, d.Stations, 1)
	assert.Equal(t, "SCC1", d.Stations[0].ID)
	assert.Equal(t, 2, d.TotalEvents)
	assert.Equal(t, 1, d.EventCounts[detector.EventQueueLength])
	assert.Len(t, d.Recent, 2)
}

func TestHandleDashboard_Cached(t *testing.T) {
	t.Parallel()
	s, store, _ := testServer(t)
	emitSample(store)

	first := get(t, s, "/api/v1/dashboard")
	require.Equal(t, http.StatusOK, first.Code)

	// events arriving inside the cache TTL are not reflected yet
	emitSample2 := emitter.New(nil, store)
	emitSample2.EmitWindow(&correlator.Context{
		StationID:   "SCC2",
		WindowStart: base,
		WindowEnd:   base.Add(30 * time.Second),
	}, []detector.Payload{detector.SystemCrash{Station: "SCC2", Status: "System Crash"}})

	second := get(t, s, "/api/v1/dashboard")
	require.Equal(t, http.StatusOK, second.Code)

	var d Dashboard
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &d))
	assert.Equal(t, 2, d.TotalEvents, "cached snapshot served within the TTL")
}

func TestHandleEvents_FromMemory(t *testing.T) {
	t.Parallel()
	s, store, _ := testServer(t)
	emitSample(store)

	rec := get(t, s, "/api/v1/events?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var events []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 1)
}

func TestHandleEvents_BadLimit(t *testing.T) {
	t.Parallel()
	s, _, _ := testServer(t)

	rec := get(t, s, "/api/v1/events?limit=-3")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStations(t *testing.T) {
	t.Parallel()
	s, _, registry := testServer(t)
	registry.Observe(record.TagRead{Timestamp: base, StationID: "SCC2", TagID: "TAG1", SKU: "PRD_A_01"})

	rec := get(t, s, "/api/v1/stations")
	require.Equal(t, http.StatusOK, rec.Code)

	var stations []correlator.Station
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stations))
	require.Len(t, stations, 1)
	assert.Equal(t, record.StatusUnknown, stations[0].Status)
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()
	s, _, _ := testServer(t)

	rec := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
