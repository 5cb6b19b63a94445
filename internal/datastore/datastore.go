// Package datastore persists emitted events to SQLite for later review
// and for the dashboard's historical queries.
package datastore

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/projectsentinel/sentinel-go/internal/emitter"
	"github.com/projectsentinel/sentinel-go/internal/errors"
	"github.com/projectsentinel/sentinel-go/internal/logging"
)

// EventRecord is the persisted form of one emitted event.
type EventRecord struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	EventID   string    `gorm:"uniqueIndex;size:16" json:"event_id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	EventName string    `gorm:"index;size:64" json:"event_name"`
	StationID string    `gorm:"index;size:32" json:"station_id"`
	Payload   string    `gorm:"type:text" json:"payload"`
}

// Store wraps the SQLite connection and implements the event sink.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (or creates) the SQLite database at path and migrates the
// event table.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("path", path).
			Build()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("path", path).
			Build()
	}

	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("path", path).
			Build()
	}

	s := &Store{db: db, logger: logging.ForService("datastore")}
	s.logger.Info("sqlite event store opened", "path", path)
	return s, nil
}

func (s *Store) Name() string { return "sqlite" }

// Write persists one event. The payload is stored as the already
// serialized event_data object.
func (s *Store) Write(e *emitter.Event) error {
	data, err := e.MarshalJSON()
	if err != nil {
		return err
	}
	rec := EventRecord{
		EventID:   e.ID,
		Timestamp: e.Timestamp,
		EventName: e.Payload.EventName(),
		StationID: e.Payload.StationID(),
		Payload:   string(data),
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("event_id", e.ID).
			Build()
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Query options for the dashboard's historical event listing.
type Query struct {
	Station string
	Event   string
	Limit   int
}

// Events returns persisted events matching q, newest first.
func (s *Store) Events(q Query) ([]EventRecord, error) {
	tx := s.db.Model(&EventRecord{}).Order("timestamp desc, event_id desc")
	if q.Station != "" {
		tx = tx.Where("station_id = ?", q.Station)
	}
	if q.Event != "" {
		tx = tx.Where("event_name = ?", q.Event)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var out []EventRecord
	if err := tx.Find(&out).Error; err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return out, nil
}

// CountByName returns cumulative event counts grouped by event name.
func (s *Store) CountByName() (map[string]int64, error) {
	type row struct {
		EventName string
		N         int64
	}
	var rows []row
	err := s.db.Model(&EventRecord{}).
		Select("event_name, count(*) as n").
		Group("event_name").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.EventName] = r.N
	}
	return out, nil
}
