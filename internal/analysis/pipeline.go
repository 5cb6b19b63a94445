// Package analysis wires the pipeline together and runs it in realtime
// or batch mode.
package analysis

import (
	"log/slog"

	"github.com/projectsentinel/sentinel-go/internal/catalog"
	"github.com/projectsentinel/sentinel-go/internal/conf"
	"github.com/projectsentinel/sentinel-go/internal/correlator"
	"github.com/projectsentinel/sentinel-go/internal/datastore"
	"github.com/projectsentinel/sentinel-go/internal/detector"
	"github.com/projectsentinel/sentinel-go/internal/emitter"
	"github.com/projectsentinel/sentinel-go/internal/logging"
	"github.com/projectsentinel/sentinel-go/internal/mqttpub"
	"github.com/projectsentinel/sentinel-go/internal/telemetry"
)

// pipeline owns every stage from window manager to sinks. All correlator
// and detector state is touched by exactly one goroutine, the one
// calling process.
type pipeline struct {
	settings *conf.Settings
	metrics  *telemetry.Metrics
	registry *correlator.Registry
	manager  *correlator.Manager
	engine   *detector.Engine
	emitter  *emitter.Emitter
	store    *emitter.Store
	db       *datastore.Store // nil when disabled
	logger   *slog.Logger
}

// newPipeline builds the full pipeline from settings: catalog, window
// manager, detection engine, emitter and every enabled sink.
func newPipeline(settings *conf.Settings, metrics *telemetry.Metrics) (*pipeline, error) {
	logger := logging.ForService("analysis")

	cat, err := catalog.Load(settings.Catalog.ProductsPath, settings.Catalog.CustomersPath)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		settings: settings,
		metrics:  metrics,
		registry: correlator.NewRegistry(),
		store:    emitter.NewStore(),
		logger:   logger,
	}

	sinks := []emitter.Sink{p.store}
	if settings.Output.File.Enabled {
		fs, err := emitter.NewFileSink(settings.Output.File.Path)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
	}
	if settings.Output.SQLite.Enabled {
		db, err := datastore.Open(settings.Output.SQLite.Path)
		if err != nil {
			return nil, err
		}
		p.db = db
		sinks = append(sinks, db)
	}
	if settings.Output.MQTT.Enabled {
		mq, err := mqttpub.Connect(settings.Output.MQTT)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, mq)
	}

	p.emitter = emitter.New(metrics, sinks...)
	p.engine = detector.NewEngine(settings.Detector, metrics)

	builder := correlator.NewBuilder(cat, p.registry)
	p.manager = correlator.NewManager(settings.Correlator, p.registry, metrics, func(w *correlator.Window) {
		ctx := builder.Build(w)
		p.emitter.EmitWindow(ctx, p.engine.Evaluate(ctx))
	})

	return p, nil
}

// shutdown force-closes all open windows and releases the sinks.
func (p *pipeline) shutdown() {
	p.manager.Flush()
	if err := p.emitter.Close(); err != nil {
		p.logger.Error("closing sinks", "error", err)
	}

	stats := p.manager.Stats()
	p.logger.Info("pipeline stopped",
		"records", stats.Ingested,
		"malformed", stats.Malformed,
		"dropped_late", stats.DroppedLate,
		"windows", stats.Closed,
		"events", p.emitter.Count())
}
