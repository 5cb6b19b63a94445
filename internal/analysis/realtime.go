package analysis

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/projectsentinel/sentinel-go/internal/api"
	"github.com/projectsentinel/sentinel-go/internal/conf"
	"github.com/projectsentinel/sentinel-go/internal/ingest"
	"github.com/projectsentinel/sentinel-go/internal/logging"
	"github.com/projectsentinel/sentinel-go/internal/telemetry"
)

// RunRealtime streams records from the live server into the pipeline
// until an interrupt arrives, then flushes every open window before
// returning.
func RunRealtime(settings *conf.Settings) error {
	logger := logging.ForService("analysis")

	if settings.Main.Log.Enabled {
		fileLogger, closeLog, err := logging.NewFileLogger(settings.Main.Log.Path, "analysis", slog.LevelInfo)
		if err != nil {
			return err
		}
		defer func() { _ = closeLog() }()
		logger = fileLogger
	}

	var metrics *telemetry.Metrics
	if settings.Telemetry.Enabled {
		metrics = telemetry.NewMetrics()
	}

	p, err := newPipeline(settings, metrics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := ingest.NewQueue(settings.Ingest.QueueSize, settings.Ingest.OverflowPolicy, metrics)
	client := ingest.NewStreamClient(settings.Ingest, queue, metrics)

	go func() {
		defer queue.Close()
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("stream client stopped", "error", err)
		}
	}()

	if settings.Telemetry.Enabled {
		go func() {
			if err := metrics.Serve(ctx, settings.Telemetry.Listen); err != nil {
				logger.Error("telemetry server stopped", "error", err)
			}
		}()
	}

	if settings.WebServer.Enabled {
		server := api.New(settings.WebServer, p.store, p.registry, p.manager, p.db)
		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Error("dashboard API stopped", "error", err)
			}
		}()
	}

	logger.Info("realtime analysis started",
		"node", settings.Main.Name,
		"server", settings.Ingest.Host,
		"port", settings.Ingest.Port)

	// Single processing goroutine, all window state is owned here.
	for rec := range queue.Records() {
		p.manager.Ingest(rec)
	}

	logger.Info("input drained, flushing open windows")
	p.shutdown()
	return nil
}
