package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectsentinel/sentinel-go/internal/detector"
	"github.com/projectsentinel/sentinel-go/internal/emitter"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sentinel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func event(id string, sec int, payload detector.Payload) *emitter.Event {
	return &emitter.Event{
		Timestamp: time.Date(2025, 8, 13, 16, 0, sec, 0, time.UTC),
		ID:        id,
		Payload:   payload,
	}
}

func TestStore_WriteAndQuery(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	require.NoError(t, s.Write(event("E000", 30, detector.QueueLength{Station: "SCC1", CustomerCount: 4})))
	require.NoError(t, s.Write(event("E001", 60, detector.QueueLength{Station: "SCC2", CustomerCount: 6})))
	require.NoError(t, s.Write(event("E002", 90, detector.SystemCrash{Station: "SCC1", Status: "Read Error"})))

	all, err := s.Events(Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "E002", all[0].EventID, "newest first")

	scc1, err := s.Events(Query{Station: "SCC1"})
	require.NoError(t, err)
	assert.Len(t, scc1, 2)

	crashes, err := s.Events(Query{Event: detector.EventSystemCrash})
	require.NoError(t, err)
	require.Len(t, crashes, 1)
	assert.Contains(t, crashes[0].Payload, `"event_name":"Unexpected Systems Crash"`)

	limited, err := s.Events(Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_CountByName(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	require.NoError(t, s.Write(event("E000", 30, detector.QueueLength{Station: "SCC1", CustomerCount: 4})))
	require.NoError(t, s.Write(event("E001", 60, detector.QueueLength{Station: "SCC1", CustomerCount: 5})))

	counts, err := s.CountByName()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[detector.EventQueueLength])
}

func TestStore_DuplicateEventIDRejected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	require.NoError(t, s.Write(event("E000", 30, detector.QueueLength{Station: "SCC1", CustomerCount: 4})))
	assert.Error(t, s.Write(event("E000", 31, detector.QueueLength{Station: "SCC1", CustomerCount: 4})))
}
