package analysis

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectsentinel/sentinel-go/internal/conf"
	"github.com/projectsentinel/sentinel-go/internal/detector"
	"github.com/projectsentinel/sentinel-go/internal/record"
)

const productsCSV = `SKU,product_name,quantity,EPC_range,barcode,weight,price
PRD_F_01,Apple,120,E28011606000,4800000000001,150.0,25.00
PRD_S_04,Soap,80,E28011606001,4800000000002,350.0,55.00
PRD_T_03,Towel,60,E28011606002,4800000000003,420.0,80.00
`

const customersCSV = `Customer_ID,Name,Age,Address,TP
C004,Jose Cruz,41,Street 2,0918
`

// input lines covering most detection rules in one window.
var inputLines = []string{
	`{"dataset":"RFID_data","event":{"timestamp":"2025-08-13T16:00:01","station_id":"SCC1","status":"Active","data":{"epc":"TAG_T","sku":"PRD_T_03","location":"IN_SCAN_AREA"}}}`,
	`{"dataset":"RFID_data","event":{"timestamp":"2025-08-13T16:00:02","station_id":"SCC1","status":"Active","data":{"epc":"TAG_S","sku":"PRD_S_04","location":"IN_SCAN_AREA"}}}`,
	`{"dataset":"POS_Transactions","event":{"timestamp":"2025-08-13T16:00:04","station_id":"SCC1","status":"Active","data":{"customer_id":"C004","sku":"PRD_S_04","price":55.00,"weight_g":350.0}}}`,
	`{"dataset":"Queue_monitor","event":{"timestamp":"2025-08-13T16:00:05","station_id":"SCC1","status":"Active","data":{"customer_count":6,"average_dwell_time":350.0}}}`,
	`{"dataset":"Current_inventory_data","event":{"timestamp":"2025-08-13T16:00:06","station_id":"","status":"Active","data":{"PRD_F_01":90,"PRD_S_04":80,"PRD_T_03":60}}}`,
	`{"dataset":"RFID_data","event":{"timestamp":"2025-08-13T16:00:40","station_id":"SCC1","status":"Active","data":{"epc":"TAG_X","sku":"PRD_F_01","location":"IN_SCAN_AREA"}}}`,
}

func testPipelineSettings(t *testing.T) *conf.Settings {
	t.Helper()
	dir := t.TempDir()

	products := filepath.Join(dir, "products_list.csv")
	customers := filepath.Join(dir, "customer_data.csv")
	require.NoError(t, os.WriteFile(products, []byte(productsCSV), 0o644))
	require.NoError(t, os.WriteFile(customers, []byte(customersCSV), 0o644))

	return &conf.Settings{
		Catalog: conf.CatalogSettings{ProductsPath: products, CustomersPath: customers},
		Correlator: conf.CorrelatorSettings{
			Window: conf.WindowSettings{
				Policy:   conf.WindowPolicyTumbling,
				Duration: 30 * time.Second,
				Grace:    5 * time.Second,
			},
		},
		Detector: conf.DetectorSettings{
			MinDwell:                0,
			PriceRatio:              0.5,
			WeightToleranceGrams:    50,
			QueueThreshold:          4,
			DwellThresholdSeconds:   300,
			InventoryVariancePct:    10,
			StaffingRatio:           0.7,
			MinInventoryForVariance: 10,
		},
		Output: conf.OutputSettings{
			File: conf.FileOutputSettings{Enabled: true, Path: filepath.Join(dir, "events.jsonl")},
		},
	}
}

// runOnce pushes the canned input through a fresh pipeline and returns
// the emitted JSON Lines.
func runOnce(t *testing.T) []string {
	t.Helper()
	settings := testPipelineSettings(t)

	p, err := newPipeline(settings, nil)
	require.NoError(t, err)

	for _, line := range inputLines {
		rec, err := record.ParseLine([]byte(line))
		require.NoError(t, err)
		p.manager.Ingest(rec)
	}
	p.shutdown()

	data, err := os.ReadFile(settings.Output.File.Path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestPipeline_EmitsExpectedEvents(t *testing.T) {
	t.Parallel()
	lines := runOnce(t)
	require.NotEmpty(t, lines)

	names := make(map[string]int)
	var ids []string
	for _, line := range lines {
		var env struct {
			Timestamp string `json:"timestamp"`
			EventID   string `json:"event_id"`
			EventData struct {
				EventName string `json:"event_name"`
			} `json:"event_data"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &env), "line: %s", line)
		names[env.EventData.EventName]++
		ids = append(ids, env.EventID)
	}

	for _, want := range []string{
		detector.EventScannerAvoidance,
		detector.EventSuccessOperation,
		detector.EventQueueLength,
		detector.EventWaitTime,
		detector.EventInventoryDiscrepancy,
		detector.EventStaffingNeed,
	} {
		assert.Positive(t, names[want], "expected at least one %q event", want)
	}
	assert.Zero(t, names[detector.EventBarcodeSwitching])
	assert.Zero(t, names[detector.EventWeightDiscrepancy])
	assert.Zero(t, names[detector.EventSystemCrash])

	assert.Equal(t, "E000", ids[0], "identifiers start at zero")
	for i, id := range ids {
		assert.Len(t, id, 4)
		assert.Equal(t, byte('E'), id[0])
		if i > 0 {
			assert.Greater(t, id, ids[i-1], "identifiers strictly increase in emission order")
		}
	}
}

func TestPipeline_DeterministicReplay(t *testing.T) {
	t.Parallel()
	first := runOnce(t)
	for range 3 {
		assert.Equal(t, first, runOnce(t), "identical input must produce identical output")
	}
}
