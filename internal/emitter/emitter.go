package emitter

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/projectsentinel/sentinel-go/internal/correlator"
	"github.com/projectsentinel/sentinel-go/internal/detector"
	"github.com/projectsentinel/sentinel-go/internal/logging"
	"github.com/projectsentinel/sentinel-go/internal/telemetry"
)

// Sink receives completed events. Implementations own their I/O and
// must tolerate being called from the single processing goroutine.
type Sink interface {
	Name() string
	Write(e *Event) error
	Close() error
}

// dedupRetention is how far behind the newest window start suppression
// keys are kept. Windows close once and never reopen, so keys older
// than this can only belong to windows that are already gone.
const dedupRetention = 10 * time.Minute

// Emitter assigns zero-padded, strictly increasing event ids in window
// close order, suppresses duplicate events per window and fans events
// out to every sink. A failing sink is logged and skipped; it never
// blocks the other sinks.
type Emitter struct {
	mu      sync.Mutex
	seq     int
	seen    map[string]time.Time // dedup key -> window start
	latest  time.Time            // newest window start seen
	sinks   []Sink
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

func New(metrics *telemetry.Metrics, sinks ...Sink) *Emitter {
	return &Emitter{
		seen:    make(map[string]time.Time),
		sinks:   sinks,
		metrics: metrics,
		logger:  logging.ForService("emitter"),
	}
}

// EmitWindow emits the payloads produced for one closed window. Payloads
// arrive in rule order; ids are assigned in that order. At most one
// event of a given name is emitted per station per window.
func (em *Emitter) EmitWindow(ctx *correlator.Context, payloads []detector.Payload) {
	em.mu.Lock()
	defer em.mu.Unlock()

	if ctx.WindowStart.After(em.latest) {
		em.latest = ctx.WindowStart
		em.prune()
	}

	for _, p := range payloads {
		key := dedupKey(p.StationID(), p.EventName(), ctx.WindowStart)
		if _, dup := em.seen[key]; dup {
			em.metrics.EventDeduplicated()
			em.logger.Debug("suppressing duplicate event",
				"event", p.EventName(),
				"station", p.StationID(),
				"window_start", ctx.WindowStart)
			continue
		}
		em.seen[key] = ctx.WindowStart

		ts := ctx.WindowEnd
		if t, ok := p.(timed); ok && !t.EventTime().IsZero() {
			ts = t.EventTime()
		}

		e := &Event{
			Timestamp: ts,
			ID:        fmt.Sprintf("E%03d", em.seq),
			Payload:   p,
		}
		em.seq++

		em.metrics.EventEmitted(p.EventName())
		em.write(e)
	}
}

// prune drops suppression keys whose window start fell behind the
// retention horizon. Caller must hold the mutex.
func (em *Emitter) prune() {
	horizon := em.latest.Add(-dedupRetention)
	for key, start := range em.seen {
		if start.Before(horizon) {
			delete(em.seen, key)
		}
	}
}

func (em *Emitter) write(e *Event) {
	for _, s := range em.sinks {
		if err := s.Write(e); err != nil {
			em.metrics.SinkError(s.Name())
			em.logger.Error("sink write failed",
				"sink", s.Name(),
				"event_id", e.ID,
				"error", err)
		}
	}
}

// Count returns how many events have been emitted so far.
func (em *Emitter) Count() int {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.seq
}

// Close closes every sink, returning the first error encountered.
func (em *Emitter) Close() error {
	var first error
	for _, s := range em.sinks {
		if err := s.Close(); err != nil {
			em.logger.Error("sink close failed", "sink", s.Name(), "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func dedupKey(station, name string, windowStart time.Time) string {
	return station + "|" + name + "|" + windowStart.Format(time.RFC3339Nano)
}
