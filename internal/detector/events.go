// Package detector evaluates the detection rules against window
// contexts. Each rule either abstains or yields one typed payload; the
// emitter wraps payloads in the output envelope.
package detector

import "time"

// Event names as they appear in the output envelope.
const (
	EventSuccessOperation     = "Success Operation"
	EventScannerAvoidance     = "Scanner Avoidance"
	EventBarcodeSwitching     = "Barcode Switching"
	EventWeightDiscrepancy    = "Weight Discrepancies"
	EventSystemCrash          = "Unexpected Systems Crash"
	EventQueueLength          = "Long Queue Length"
	EventWaitTime             = "Long Wait Time"
	EventInventoryDiscrepancy = "Inventory Discrepancy"
	EventStaffingNeed         = "Staffing Needs"
)

// Payload is one of the nine closed event variants. StationID is empty
// for store-wide events.
type Payload interface {
	EventName() string
	StationID() string
}

// SuccessOperation marks a transaction that passed every check.
type SuccessOperation struct {
	Station  string    `json:"station_id"`
	Customer string    `json:"customer_id"`
	SKU      string    `json:"product_sku"`
	At       time.Time `json:"-"`
}

func (p SuccessOperation) EventName() string { return EventSuccessOperation }
func (p SuccessOperation) StationID() string { return p.Station }

// EventTime pins the event timestamp to the triggering transaction.
func (p SuccessOperation) EventTime() time.Time { return p.At }

// ScannerAvoidance flags an item seen in the scan area that no
// transaction accounted for.
type ScannerAvoidance struct {
	Station  string `json:"station_id"`
	SKU      string `json:"product_sku"`
	Customer string `json:"customer_id"`
}

func (p ScannerAvoidance) EventName() string { return EventScannerAvoidance }
func (p ScannerAvoidance) StationID() string { return p.Station }

// BarcodeSwitching flags a scanned price far below the catalog price.
type BarcodeSwitching struct {
	Station      string  `json:"station_id"`
	SKU          string  `json:"sku"`
	ScannedPrice float64 `json:"scanned_price"`
	CatalogPrice float64 `json:"catalog_price"`
}

func (p BarcodeSwitching) EventName() string { return EventBarcodeSwitching }
func (p BarcodeSwitching) StationID() string { return p.Station }

// WeightDiscrepancy flags a reported weight too far from the catalog
// expectation.
type WeightDiscrepancy struct {
	Station        string  `json:"station_id"`
	SKU            string  `json:"sku"`
	ActualWeight   float64 `json:"actual_weight"`
	ExpectedWeight float64 `json:"expected_weight"`
}

func (p WeightDiscrepancy) EventName() string { return EventWeightDiscrepancy }
func (p WeightDiscrepancy) StationID() string { return p.Station }

// SystemCrash flags a station reporting a fault status.
type SystemCrash struct {
	Station string `json:"station_id"`
	Status  string `json:"status"`
}

func (p SystemCrash) EventName() string { return EventSystemCrash }
func (p SystemCrash) StationID() string { return p.Station }

// QueueLength flags a queue at or over the customer threshold.
type QueueLength struct {
	Station       string `json:"station_id"`
	CustomerCount int    `json:"customer_count"`
}

func (p QueueLength) EventName() string { return EventQueueLength }
func (p QueueLength) StationID() string { return p.Station }

// WaitTime flags an average dwell at or over the wait threshold.
type WaitTime struct {
	Station      string  `json:"station_id"`
	DwellSeconds float64 `json:"dwell_seconds"`
}

func (p WaitTime) EventName() string { return EventWaitTime }
func (p WaitTime) StationID() string { return p.Station }

// InventoryDiscrepancy flags counted stock drifting from expectation.
type InventoryDiscrepancy struct {
	SKU         string  `json:"sku"`
	Expected    int     `json:"expected_quantity"`
	Actual      int     `json:"actual_quantity"`
	VariancePct float64 `json:"variance_pct"`
}

func (p InventoryDiscrepancy) EventName() string { return EventInventoryDiscrepancy }
func (p InventoryDiscrepancy) StationID() string { return "" }

// StaffingNeed flags too many stations busy at once.
type StaffingNeed struct {
	ActiveRatio       float64 `json:"active_ratio"`
	RecommendedAction string  `json:"recommended_action"`
}

func (p StaffingNeed) EventName() string { return EventStaffingNeed }
func (p StaffingNeed) StationID() string { return "" }
