package analysis

import (
	"context"

	"github.com/projectsentinel/sentinel-go/internal/conf"
	"github.com/projectsentinel/sentinel-go/internal/ingest"
	"github.com/projectsentinel/sentinel-go/internal/logging"
)

// RunBatch replays recorded input files through the pipeline. The
// logical clock advances from record timestamps only, so a batch run of
// a captured stream produces the same events as the live run did.
func RunBatch(settings *conf.Settings, inputDir string) error {
	logger := logging.ForService("analysis")

	p, err := newPipeline(settings, nil)
	if err != nil {
		return err
	}

	ctx := context.Background()
	queue := ingest.NewQueue(settings.Ingest.QueueSize, conf.OverflowBlock, nil)

	errCh := make(chan error, 1)
	go func() {
		defer queue.Close()
		n, err := ingest.Replay(ctx, inputDir, queue, nil)
		if err != nil {
			errCh <- err
			return
		}
		logger.Info("replay complete", "records", n)
		errCh <- nil
	}()

	for rec := range queue.Records() {
		p.manager.Ingest(rec)
	}

	if err := <-errCh; err != nil {
		return err
	}

	p.shutdown()
	return nil
}
