// Package ingest feeds sensor records into the pipeline: a live TCP
// stream client, a batch file replayer and the bounded hand-off queue
// between the I/O side and the single processing goroutine.
package ingest

import (
	"context"

	"github.com/projectsentinel/sentinel-go/internal/conf"
	"github.com/projectsentinel/sentinel-go/internal/record"
	"github.com/projectsentinel/sentinel-go/internal/telemetry"
)

// Queue is the bounded, ordered hand-off between the ingest side and
// the pipeline. Under the block policy a full queue blocks the
// producer; under drop-oldest, the oldest queued record is discarded to
// make room and counted.
type Queue struct {
	ch      chan record.Record
	policy  string
	metrics *telemetry.Metrics
}

func NewQueue(size int, policy string, metrics *telemetry.Metrics) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		ch:      make(chan record.Record, size),
		policy:  policy,
		metrics: metrics,
	}
}

// Push enqueues one record, applying the overflow policy. Push returns
// the context error if ctx is canceled while blocked.
func (q *Queue) Push(ctx context.Context, rec record.Record) error {
	if q.policy == conf.OverflowDropOldest {
		for {
			select {
			case q.ch <- rec:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			select {
			case <-q.ch:
				q.metrics.QueueDropped()
			default:
			}
		}
	}

	select {
	case q.ch <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Records returns the consumer side of the queue. The channel is closed
// by Close once all producers are done.
func (q *Queue) Records() <-chan record.Record {
	return q.ch
}

// Close closes the queue. Call only after every producer has stopped.
func (q *Queue) Close() {
	close(q.ch)
}
