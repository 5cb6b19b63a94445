package record

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/projectsentinel/sentinel-go/internal/errors"
)

// Dataset names used by the streaming server and the batch input files.
const (
	DatasetTransactions = "POS_Transactions"
	DatasetTagReads     = "RFID_data"
	DatasetQueue        = "Queue_monitor"
	DatasetRecognition  = "Product_recognism"
	DatasetInventory    = "Current_inventory_data"
)

// Envelope is the wire framing of one streamed record: a dataset name and
// the raw payload.
type Envelope struct {
	Dataset string          `json:"dataset"`
	Event   json.RawMessage `json:"event"`
}

// payload is the common shape of the five dataset payloads. Data holds the
// type-specific fields and is decoded per dataset.
type payload struct {
	Timestamp string          `json:"timestamp"`
	StationID string          `json:"station_id"`
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
}

// timeLayouts accepted for the timestamp field. The streaming server emits
// ISO-8601 with and without a zone designator.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses an ISO-8601 timestamp as emitted by the sensors.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseLine decodes one JSON line from the stream into a typed record.
func ParseLine(line []byte) (Record, error) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, errors.New(fmt.Errorf("decoding envelope: %w", err)).
			Category(errors.CategoryRecordParsing).
			Component("record").
			Build()
	}
	return ParseEnvelope(&env)
}

// ParseEnvelope decodes the payload of an envelope into the typed record
// for its dataset.
func ParseEnvelope(env *Envelope) (Record, error) {
	var p payload
	if err := json.Unmarshal(env.Event, &p); err != nil {
		return nil, errors.New(fmt.Errorf("decoding %s payload: %w", env.Dataset, err)).
			Category(errors.CategoryRecordParsing).
			Component("record").
			Context("dataset", env.Dataset).
			Build()
	}

	ts, err := ParseTimestamp(p.Timestamp)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryRecordParsing).
			Component("record").
			Context("dataset", env.Dataset).
			Build()
	}

	switch env.Dataset {
	case DatasetTransactions:
		return parseTransaction(&p, ts)
	case DatasetTagReads:
		return parseTagRead(&p, ts)
	case DatasetQueue:
		return parseQueueSample(&p, ts)
	case DatasetRecognition:
		return parseRecognition(&p, ts)
	case DatasetInventory:
		return parseInventory(&p, ts)
	default:
		return nil, errors.Newf("unknown dataset %q", env.Dataset).
			Category(errors.CategoryRecordParsing).
			Component("record").
			Build()
	}
}

func parseTransaction(p *payload, ts time.Time) (Record, error) {
	var data struct {
		CustomerID  string   `json:"customer_id"`
		SKU         string   `json:"sku"`
		ProductName string   `json:"product_name"`
		Barcode     string   `json:"barcode"`
		Price       float64  `json:"price"`
		WeightGrams *float64 `json:"weight_g"`
	}
	if err := json.Unmarshal(p.Data, &data); err != nil {
		return nil, fmt.Errorf("decoding transaction data: %w", err)
	}
	tx := Transaction{
		Timestamp:    ts,
		StationID:    p.StationID,
		SKU:          data.SKU,
		ProductName:  data.ProductName,
		Barcode:      data.Barcode,
		ScannedPrice: data.Price,
		CustomerID:   data.CustomerID,
		Status:       p.Status,
	}
	if data.WeightGrams != nil {
		tx.WeightGrams = *data.WeightGrams
		tx.HasWeight = true
	}
	return tx, nil
}

func parseTagRead(p *payload, ts time.Time) (Record, error) {
	var data struct {
		EPC      string `json:"epc"`
		SKU      string `json:"sku"`
		Location string `json:"location"`
	}
	if err := json.Unmarshal(p.Data, &data); err != nil {
		return nil, fmt.Errorf("decoding rfid data: %w", err)
	}
	return TagRead{
		Timestamp: ts,
		StationID: p.StationID,
		TagID:     data.EPC,
		SKU:       data.SKU,
		Location:  data.Location,
		Status:    p.Status,
	}, nil
}

func parseQueueSample(p *payload, ts time.Time) (Record, error) {
	var data struct {
		CustomerCount int     `json:"customer_count"`
		AvgDwellTime  float64 `json:"average_dwell_time"`
	}
	if err := json.Unmarshal(p.Data, &data); err != nil {
		return nil, fmt.Errorf("decoding queue data: %w", err)
	}
	return QueueSample{
		Timestamp:       ts,
		StationID:       p.StationID,
		CustomerCount:   data.CustomerCount,
		AvgDwellSeconds: data.AvgDwellTime,
		Status:          p.Status,
	}, nil
}

func parseRecognition(p *payload, ts time.Time) (Record, error) {
	var data struct {
		PredictedProduct string  `json:"predicted_product"`
		Accuracy         float64 `json:"accuracy"`
	}
	if err := json.Unmarshal(p.Data, &data); err != nil {
		return nil, fmt.Errorf("decoding recognition data: %w", err)
	}
	return RecognitionResult{
		Timestamp:    ts,
		StationID:    p.StationID,
		PredictedSKU: data.PredictedProduct,
		Confidence:   data.Accuracy,
		Status:       p.Status,
	}, nil
}

func parseInventory(p *payload, ts time.Time) (Record, error) {
	counts := make(map[string]int)
	if err := json.Unmarshal(p.Data, &counts); err != nil {
		return nil, fmt.Errorf("decoding inventory data: %w", err)
	}
	return InventorySnapshot{
		Timestamp: ts,
		Counts:    counts,
	}, nil
}
