// Package correlator groups validated records into per-station tumbling
// windows and builds the evaluation context handed to the detection rules.
package correlator

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/projectsentinel/sentinel-go/internal/conf"
	"github.com/projectsentinel/sentinel-go/internal/logging"
	"github.com/projectsentinel/sentinel-go/internal/record"
	"github.com/projectsentinel/sentinel-go/internal/telemetry"
)

// Window collects every record that fell into one station's time slice.
// The empty station id denotes the store-wide slice, which carries the
// inventory snapshots and drives the cross-station checks.
type Window struct {
	StationID string
	Start     time.Time
	End       time.Time

	TagReads     []record.TagRead
	Transactions []record.Transaction
	QueueSamples []record.QueueSample
	Recognitions []record.RecognitionResult
	Snapshots    []record.InventorySnapshot

	// Partial marks a window force-closed at shutdown before its span
	// and grace elapsed.
	Partial bool
}

// Contains reports whether ts falls inside the window span. The start
// bound is inclusive, the end bound exclusive.
func (w *Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

func (w *Window) add(rec record.Record) {
	switch v := rec.(type) {
	case record.TagRead:
		w.TagReads = append(w.TagReads, v)
	case record.Transaction:
		w.Transactions = append(w.Transactions, v)
	case record.QueueSample:
		w.QueueSamples = append(w.QueueSamples, v)
	case record.RecognitionResult:
		w.Recognitions = append(w.Recognitions, v)
	case record.InventorySnapshot:
		w.Snapshots = append(w.Snapshots, v)
	}
}

// stationState tracks the windows of one station stream. The first
// record seen for the station fixes the window alignment origin.
type stationState struct {
	origin        time.Time
	windows       []*Window
	closedThrough time.Time // end of the latest closed window
}

// Stats is a point-in-time view of the manager's counters.
type Stats struct {
	Ingested    uint64 `json:"ingested"`
	Malformed   uint64 `json:"malformed"`
	DroppedLate uint64 `json:"dropped_late"`
	Closed      uint64 `json:"windows_closed"`
}

// CloseFunc receives every closed window in deterministic close order.
type CloseFunc func(w *Window)

// Manager assigns records to tumbling windows and closes a window once
// the logical clock passes its end plus the grace period. The logical
// clock is the maximum record timestamp observed, so replaying the same
// input yields the same window boundaries and close order.
type Manager struct {
	mu       sync.Mutex
	duration time.Duration
	grace    time.Duration

	clock    time.Time
	stations map[string]*stationState
	global   *stationState
	registry *Registry

	onClose CloseFunc
	stats   Stats

	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewManager creates a window manager. onClose must not be nil.
func NewManager(settings conf.CorrelatorSettings, registry *Registry, metrics *telemetry.Metrics, onClose CloseFunc) *Manager {
	return &Manager{
		duration: settings.Window.Duration,
		grace:    settings.Window.Grace,
		stations: make(map[string]*stationState),
		global:   &stationState{},
		registry: registry,
		onClose:  onClose,
		metrics:  metrics,
		logger:   logging.ForService("correlator"),
	}
}

// Clock returns the current logical clock.
func (m *Manager) Clock() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock
}

// Stats returns a copy of the manager counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Ingest routes one record into its window. Records that fail validation
// are counted and dropped. Records whose window already closed are
// counted as dropped-late. Advancing the logical clock may close earlier
// windows before the record is placed.
func (m *Manager) Ingest(rec record.Record) {
	if !record.Valid(rec) {
		m.mu.Lock()
		m.stats.Malformed++
		m.mu.Unlock()
		m.metrics.RecordMalformed()
		m.logger.Warn("dropping malformed record")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ts := rec.RecordTime()
	if ts.After(m.clock) {
		m.clock = ts
		m.closeExpired()
	}

	if m.registry != nil {
		m.registry.Observe(rec)
	}

	// Inventory snapshots carry no station id and live on the
	// store-wide slice. Station records also tick the store-wide
	// slice forward so the cross-station checks run even when no
	// snapshots arrive.
	if rec.RecordKind() == record.KindInventory {
		m.place(m.global, "", rec, ts)
	} else {
		st, ok := m.stations[rec.RecordStation()]
		if !ok {
			st = &stationState{origin: ts}
			m.stations[rec.RecordStation()] = st
		}
		m.place(st, rec.RecordStation(), rec, ts)
		m.tickGlobal(ts)
	}

	m.stats.Ingested++
	m.metrics.RecordIngested(string(rec.RecordKind()))
}

// place appends rec to the window of st containing ts, creating the
// window if needed. Records behind the station's closed frontier are
// dropped as late.
func (m *Manager) place(st *stationState, stationID string, rec record.Record, ts time.Time) {
	if st.origin.IsZero() {
		st.origin = ts
	}

	if !st.closedThrough.IsZero() && ts.Before(st.closedThrough) {
		m.stats.DroppedLate++
		m.metrics.RecordDroppedLate()
		m.logger.Debug("dropping late record",
			"station", stationID,
			"timestamp", ts,
			"closed_through", st.closedThrough)
		return
	}

	w := m.windowFor(st, stationID, ts)
	w.add(rec)
}

// tickGlobal keeps the store-wide slice aligned and advancing even when
// no inventory snapshots arrive, so occupancy checks still run.
func (m *Manager) tickGlobal(ts time.Time) {
	if m.global.origin.IsZero() {
		m.global.origin = ts
	}
	if !m.global.closedThrough.IsZero() && ts.Before(m.global.closedThrough) {
		return
	}
	m.windowFor(m.global, "", ts)
}

func (m *Manager) windowFor(st *stationState, stationID string, ts time.Time) *Window {
	for _, w := range st.windows {
		if w.Contains(ts) {
			return w
		}
	}

	// Floor the slice index so records older than the origin land in
	// the slice containing them, not the one rounded toward the origin.
	elapsed := ts.Sub(st.origin)
	q := elapsed / m.duration
	if elapsed < 0 && elapsed%m.duration != 0 {
		q--
	}
	start := st.origin.Add(q * m.duration)
	w := &Window{
		StationID: stationID,
		Start:     start,
		End:       start.Add(m.duration),
	}
	st.windows = append(st.windows, w)
	sort.Slice(st.windows, func(i, j int) bool {
		return st.windows[i].Start.Before(st.windows[j].Start)
	})
	return w
}

// closeExpired closes every window whose end plus grace is behind the
// logical clock. Windows closing in the same advance are ordered by end
// time, then station id, so the close order is deterministic. Caller
// must hold the mutex.
func (m *Manager) closeExpired() {
	var due []*Window

	collect := func(st *stationState) {
		kept := st.windows[:0]
		for _, w := range st.windows {
			if w.End.Add(m.grace).Before(m.clock) || w.End.Add(m.grace).Equal(m.clock) {
				due = append(due, w)
				if w.End.After(st.closedThrough) {
					st.closedThrough = w.End
				}
			} else {
				kept = append(kept, w)
			}
		}
		st.windows = kept
	}

	for _, st := range m.stations {
		collect(st)
	}
	collect(m.global)

	m.closeAll(due)
}

// Flush closes every remaining window regardless of grace, marking them
// partial. Called once at shutdown or at the end of a batch replay.
func (m *Manager) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*Window
	drain := func(st *stationState) {
		for _, w := range st.windows {
			w.Partial = w.End.After(m.clock)
			due = append(due, w)
			if w.End.After(st.closedThrough) {
				st.closedThrough = w.End
			}
		}
		st.windows = nil
	}

	for _, st := range m.stations {
		drain(st)
	}
	drain(m.global)

	m.closeAll(due)
}

func (m *Manager) closeAll(due []*Window) {
	sort.Slice(due, func(i, j int) bool {
		if !due[i].End.Equal(due[j].End) {
			return due[i].End.Before(due[j].End)
		}
		return due[i].StationID < due[j].StationID
	})

	for _, w := range due {
		m.stats.Closed++
		m.metrics.WindowClosed()
		m.logger.Debug("window closed",
			"station", w.StationID,
			"start", w.Start,
			"end", w.End,
			"partial", w.Partial)
		m.onClose(w)
	}
}
