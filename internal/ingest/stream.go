package ingest

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/projectsentinel/sentinel-go/internal/conf"
	"github.com/projectsentinel/sentinel-go/internal/logging"
	"github.com/projectsentinel/sentinel-go/internal/record"
	"github.com/projectsentinel/sentinel-go/internal/telemetry"
)

// maxLineBytes bounds a single JSON line from the streaming server.
const maxLineBytes = 1 << 20

// StreamClient reads newline-delimited JSON envelopes from the
// streaming server and pushes parsed records onto the queue. It
// reconnects with exponential backoff until the context is canceled.
type StreamClient struct {
	settings conf.IngestSettings
	queue    *Queue
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

func NewStreamClient(settings conf.IngestSettings, queue *Queue, metrics *telemetry.Metrics) *StreamClient {
	return &StreamClient{
		settings: settings,
		queue:    queue,
		metrics:  metrics,
		logger:   logging.ForService("ingest"),
	}
}

// Run connects and consumes until ctx is canceled. Each connection
// attempt gets a fresh session id for log correlation.
func (c *StreamClient) Run(ctx context.Context) error {
	addr := net.JoinHostPort(c.settings.Host, fmt.Sprintf("%d", c.settings.Port))
	backoff := c.settings.ReconnectMin

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		session := uuid.NewString()[:8]
		logger := c.logger.With("session", session, "addr", addr)

		n, err := c.consume(ctx, addr, logger)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if n > 0 {
			// a connection that delivered records restarts the schedule
			backoff = c.settings.ReconnectMin
		}
		if err != nil {
			logger.Warn("stream connection ended", "error", err, "retry_in", backoff)
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff = c.nextBackoff(backoff)
	}
}

// nextBackoff doubles the reconnect wait up to the configured cap.
func (c *StreamClient) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > c.settings.ReconnectMax {
		next = c.settings.ReconnectMax
	}
	return next
}

// consume holds one connection open and pushes every parsed record,
// returning how many it delivered. A nil error means the server closed
// the stream cleanly.
func (c *StreamClient) consume(ctx context.Context, addr string, logger *slog.Logger) (int, error) {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	// Unblock the scanner when the context is canceled. The watchdog is
	// tied to this connection so it does not outlive it.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	logger.Info("connected to streaming server")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	n := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec, err := record.ParseLine(line)
		if err != nil {
			c.metrics.RecordMalformed()
			logger.Warn("skipping malformed line", "error", err)
			continue
		}
		if err := c.queue.Push(ctx, rec); err != nil {
			return n, err
		}
		n++
	}
	return n, scanner.Err()
}
