package emitter

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/projectsentinel/sentinel-go/internal/errors"
)

// FileSink appends events to a JSON Lines file, one envelope per line.
type FileSink struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Component("emitter").
			Context("path", path).
			Build()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Component("emitter").
			Context("path", path).
			Build()
	}
	return &FileSink{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

func (s *FileSink) Name() string { return "file" }

// Write appends one envelope line and flushes, so the file can be
// tailed while the pipeline runs.
func (s *FileSink) Write(e *Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *FileSink) Close() error {
	if err := s.w.Flush(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}
