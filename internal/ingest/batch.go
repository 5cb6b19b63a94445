package ingest

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/projectsentinel/sentinel-go/internal/errors"
	"github.com/projectsentinel/sentinel-go/internal/logging"
	"github.com/projectsentinel/sentinel-go/internal/record"
	"github.com/projectsentinel/sentinel-go/internal/telemetry"
)

// Replay reads every .jsonl file under dir, parses all records, sorts
// them by timestamp and pushes them onto the queue in order. Replaying
// the same directory always yields the same record sequence, so a batch
// run reproduces the live pipeline's output exactly.
func Replay(ctx context.Context, dir string, queue *Queue, metrics *telemetry.Metrics) (int, error) {
	logger := logging.ForService("ingest")

	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, errors.Newf("no .jsonl files in %s", dir).
			Category(errors.CategoryFileIO).
			Component("ingest").
			Build()
	}
	sort.Strings(paths)

	var records []record.Record
	for _, path := range paths {
		n, err := readFile(path, &records, metrics, logger)
		if err != nil {
			return 0, err
		}
		logger.Info("read input file", "path", path, "records", n)
	}

	// Stable sort keeps same-timestamp records in file order.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RecordTime().Before(records[j].RecordTime())
	})

	for _, rec := range records {
		if err := queue.Push(ctx, rec); err != nil {
			return 0, err
		}
	}
	return len(records), nil
}

func readFile(path string, out *[]record.Record, metrics *telemetry.Metrics, logger *slog.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.New(err).
			Category(errors.CategoryFileIO).
			Component("ingest").
			Context("path", path).
			Build()
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	n := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec, err := record.ParseLine(line)
		if err != nil {
			metrics.RecordMalformed()
			logger.Warn("skipping malformed line", "path", path, "error", err)
			continue
		}
		*out = append(*out, rec)
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, errors.New(err).
			Category(errors.CategoryFileIO).
			Component("ingest").
			Context("path", path).
			Build()
	}
	return n, nil
}
