package correlator

import (
	"sort"
	"sync"
	"time"

	"github.com/projectsentinel/sentinel-go/internal/record"
)

// Station is the registry view of a single checkout station.
type Station struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	LastSeen      time.Time `json:"last_seen"`
	CustomerCount int       `json:"customer_count"`
}

// Registry tracks every station ever observed on the input streams.
// Stations are created lazily on first sight with status "unknown".
type Registry struct {
	mu       sync.RWMutex
	stations map[string]*Station
}

func NewRegistry() *Registry {
	return &Registry{stations: make(map[string]*Station)}
}

// Observe updates the registry from an incoming record. Records with an
// empty station id (inventory snapshots) leave the registry untouched.
func (r *Registry) Observe(rec record.Record) {
	id := rec.RecordStation()
	if id == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.stations[id]
	if !ok {
		st = &Station{ID: id, Status: record.StatusUnknown}
		r.stations[id] = st
	}

	ts := rec.RecordTime()
	if ts.After(st.LastSeen) {
		st.LastSeen = ts
	}

	switch v := rec.(type) {
	case record.TagRead:
		if v.Status != "" {
			st.Status = v.Status
		}
	case record.Transaction:
		if v.Status != "" {
			st.Status = v.Status
		}
	case record.QueueSample:
		if v.Status != "" {
			st.Status = v.Status
		}
		st.CustomerCount = v.CustomerCount
	case record.RecognitionResult:
		if v.Status != "" {
			st.Status = v.Status
		}
	}
}

// Snapshot returns a copy of all known stations sorted by id.
func (r *Registry) Snapshot() []Station {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Station, 0, len(r.stations))
	for _, st := range r.stations {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Occupancy reports how many stations are currently serving customers.
// A station counts as active when its last queue sample showed at least
// one customer present.
func (r *Registry) Occupancy() OccupancyStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := OccupancyStats{TotalStations: len(r.stations)}
	for _, st := range r.stations {
		if st.CustomerCount > 0 {
			stats.ActiveStations++
		}
	}
	if stats.TotalStations > 0 {
		stats.ActiveRatio = float64(stats.ActiveStations) / float64(stats.TotalStations)
	}
	return stats
}
