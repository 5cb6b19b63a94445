// Package record defines the typed representations of the seven retail
// sensor inputs. Records are pure data plus validation predicates; all
// behavior lives in the correlator and detector packages.
package record

import (
	"time"
)

// Kind identifies the type of a sensor record.
type Kind string

const (
	KindTagRead     Kind = "rfid_reading"
	KindTransaction Kind = "pos_transaction"
	KindQueueSample Kind = "queue_monitoring"
	KindRecognition Kind = "product_recognition"
	KindInventory   Kind = "inventory_snapshot"
)

// Station statuses carried on the status field of station-scoped records.
const (
	StatusActive      = "Active"
	StatusUnknown     = "unknown"
	StatusSystemCrash = "System Crash"
	StatusReadError   = "Read Error"
)

// LocationInScanArea marks a tag read inside the scanner field of a station.
const LocationInScanArea = "IN_SCAN_AREA"

// Record is the common view of every sensor record routed through the
// correlator. Implementations are plain structs; no methods mutate state.
type Record interface {
	RecordKind() Kind
	RecordTime() time.Time
	RecordStation() string
}

// TagRead is a proximity-sensor detection of an item near a station. The
// same tag may be read repeatedly while an item dwells in the scan area.
type TagRead struct {
	Timestamp time.Time
	StationID string
	TagID     string // EPC of the tag
	SKU       string
	Location  string
	Status    string
}

func (r TagRead) RecordKind() Kind { return KindTagRead }
func (r TagRead) RecordTime() time.Time { return r.Timestamp }
func (r TagRead) RecordStation() string { return r.StationID }

// InScanArea reports whether the read carries a usable SKU inside the scan area.
func (r TagRead) InScanArea() bool {
	return r.Location == LocationInScanArea && r.SKU != "" && r.SKU != "null"
}

// Transaction is a completed point-of-sale scan.
type Transaction struct {
	Timestamp    time.Time
	StationID    string
	SKU          string
	ProductName  string
	Barcode      string
	ScannedPrice float64
	WeightGrams  float64 // 0 when the scale reported nothing
	HasWeight    bool
	CustomerID   string
	Status       string
}

func (r Transaction) RecordKind() Kind { return KindTransaction }
func (r Transaction) RecordTime() time.Time { return r.Timestamp }
func (r Transaction) RecordStation() string { return r.StationID }

// QueueSample is a periodic occupancy reading for one station.
type QueueSample struct {
	Timestamp       time.Time
	StationID       string
	CustomerCount   int
	AvgDwellSeconds float64
	Status          string
}

func (r QueueSample) RecordKind() Kind { return KindQueueSample }
func (r QueueSample) RecordTime() time.Time { return r.Timestamp }
func (r QueueSample) RecordStation() string { return r.StationID }

// RecognitionResult is a vision-based product identification. It may be
// absent or low-confidence and is used only as supporting evidence.
type RecognitionResult struct {
	Timestamp    time.Time
	StationID    string
	PredictedSKU string
	Confidence   float64
	Status       string
}

func (r RecognitionResult) RecordKind() Kind { return KindRecognition }
func (r RecognitionResult) RecordTime() time.Time { return r.Timestamp }
func (r RecognitionResult) RecordStation() string { return r.StationID }

// InventorySnapshot is a periodic stock count across all SKUs. It is not
// station-scoped; RecordStation returns empty.
type InventorySnapshot struct {
	Timestamp time.Time
	Counts    map[string]int
}

func (r InventorySnapshot) RecordKind() Kind { return KindInventory }
func (r InventorySnapshot) RecordTime() time.Time { return r.Timestamp }
func (r InventorySnapshot) RecordStation() string { return "" }

// Valid reports whether the record carries the minimum fields the
// correlator requires: a timestamp and, for station-scoped kinds, a
// station id.
func Valid(r Record) bool {
	if r == nil || r.RecordTime().IsZero() {
		return false
	}
	switch rec := r.(type) {
	case TagRead:
		return rec.StationID != ""
	case Transaction:
		return rec.StationID != "" && rec.SKU != ""
	case QueueSample:
		return rec.StationID != "" && rec.CustomerCount >= 0
	case RecognitionResult:
		return rec.StationID != ""
	case InventorySnapshot:
		return len(rec.Counts) > 0
	default:
		return false
	}
}
