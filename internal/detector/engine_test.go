package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectsentinel/sentinel-go/internal/conf"
	"github.com/projectsentinel/sentinel-go/internal/correlator"
	"github.com/projectsentinel/sentinel-go/internal/record"
)

var base = time.Date(2025, 8, 13, 16, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }

func testSettings() conf.DetectorSettings {
	return conf.DetectorSettings{
		MinDwell:                0,
		PriceRatio:              0.5,
		WeightToleranceGrams:    50,
		QueueThreshold:          4,
		DwellThresholdSeconds:   300,
		InventoryVariancePct:    10,
		StaffingRatio:           0.7,
		MinInventoryForVariance: 10,
	}
}

func newTestEngine() *Engine {
	return NewEngine(testSettings(), nil)
}

func stationCtx() *correlator.Context {
	return &correlator.Context{
		StationID:   "SCC1",
		WindowStart: at(0),
		WindowEnd:   at(30),
	}
}

func globalCtx() *correlator.Context {
	return &correlator.Context{WindowStart: at(0), WindowEnd: at(30)}
}

func find(payloads []Payload, name string) Payload {
	for _, p := range payloads {
		if p.EventName() == name {
			return p
		}
	}
	return nil
}

func TestScannerAvoidance(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	ctx := stationCtx()
	ctx.Unscanned = []correlator.UnscannedRead{{
		Read: record.TagRead{Timestamp: at(1), StationID: "SCC1", TagID: "TAG1", SKU: "PRD_T_03", Location: record.LocationInScanArea},
	}}

	p := find(e.Evaluate(ctx), EventScannerAvoidance)
	require.NotNil(t, p)
	sa := p.(ScannerAvoidance)
	assert.Equal(t, "SCC1", sa.Station)
	assert.Equal(t, "PRD_T_03", sa.SKU)
	assert.Equal(t, UnknownCustomer, sa.Customer, "unresolvable customer reported as Unknown")

	ctx.CustomerID = "C004"
	sa = find(e.Evaluate(ctx), EventScannerAvoidance).(ScannerAvoidance)
	assert.Equal(t, "C004", sa.Customer)
}

func TestScannerAvoidance_SkipsMatchedTags(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	// same tag read twice, one read satisfied by a transaction: the
	// leftover read is not avoidance
	ctx := stationCtx()
	read := record.TagRead{Timestamp: at(1), StationID: "SCC1", TagID: "TAG1", SKU: "PRD_F_01", Location: record.LocationInScanArea}
	ctx.Matched = []correlator.TagMatch{{Read: read, Tx: record.Transaction{Timestamp: at(2), StationID: "SCC1", SKU: "PRD_F_01"}}}
	ctx.Unscanned = []correlator.UnscannedRead{{Read: read}}

	assert.Nil(t, find(e.Evaluate(ctx), EventScannerAvoidance))
}

func TestScannerAvoidance_MinDwell(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.MinDwell = 5 * time.Second
	e := NewEngine(settings, nil)

	ctx := stationCtx()
	ctx.Unscanned = []correlator.UnscannedRead{{
		Read:  record.TagRead{Timestamp: at(1), StationID: "SCC1", TagID: "TAG1", SKU: "PRD_T_03", Location: record.LocationInScanArea},
		Dwell: 4 * time.Second,
	}}
	assert.Nil(t, find(e.Evaluate(ctx), EventScannerAvoidance))

	ctx.Unscanned[0].Dwell = 5 * time.Second
	assert.NotNil(t, find(e.Evaluate(ctx), EventScannerAvoidance))
}

func TestBarcodeSwitching_RatioBoundary(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	check := func(scanned float64) Payload {
		ctx := stationCtx()
		ctx.PriceChecks = []correlator.PriceCheck{{
			Tx:           record.Transaction{Timestamp: at(1), StationID: "SCC1", SKU: "PRD_T_03", ScannedPrice: scanned},
			CatalogPrice: 20.00,
			Ratio:        scanned / 20.00,
		}}
		return find(e.Evaluate(ctx), EventBarcodeSwitching)
	}

	assert.Nil(t, check(10.01), "just above half catalog price must not fire")

	p := check(2.00)
	require.NotNil(t, p)
	bs := p.(BarcodeSwitching)
	assert.InDelta(t, 2.00, bs.ScannedPrice, 1e-9)
	assert.InDelta(t, 20.00, bs.CatalogPrice, 1e-9)

	assert.NotNil(t, check(10.00), "exactly at the ratio fires")
}

func TestWeightDiscrepancy_Boundary(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	check := func(deviation float64) Payload {
		ctx := stationCtx()
		ctx.WeightChecks = []correlator.WeightCheck{{
			Tx:             record.Transaction{Timestamp: at(1), StationID: "SCC1", SKU: "PRD_S_04", WeightGrams: 350 + deviation, HasWeight: true},
			ExpectedGrams:  350,
			DeviationGrams: deviation,
		}}
		return find(e.Evaluate(ctx), EventWeightDiscrepancy)
	}

	assert.Nil(t, check(50.00), "deviation of exactly 50 g must not fire")
	require.NotNil(t, check(50.01), "50.01 g must fire")

	wd := check(50.01).(WeightDiscrepancy)
	assert.InDelta(t, 400.01, wd.ActualWeight, 1e-9)
	assert.InDelta(t, 350, wd.ExpectedWeight, 1e-9)
}

func TestSystemCrash(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	ctx := stationCtx()
	ctx.StationStatus = record.StatusActive
	assert.Nil(t, find(e.Evaluate(ctx), EventSystemCrash))

	for _, status := range []string{record.StatusSystemCrash, record.StatusReadError} {
		ctx.StationStatus = status
		p := find(e.Evaluate(ctx), EventSystemCrash)
		require.NotNil(t, p, "status %q must fire", status)
		assert.Equal(t, status, p.(SystemCrash).Status)
	}
}

func TestQueueLength_Boundary(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	ctx := stationCtx()
	ctx.Queue = correlator.QueueStats{Samples: 1, MaxCustomers: 3}
	assert.Nil(t, find(e.Evaluate(ctx), EventQueueLength), "three customers must not fire")

	ctx.Queue.MaxCustomers = 4
	p := find(e.Evaluate(ctx), EventQueueLength)
	require.NotNil(t, p, "four customers must fire")
	assert.Equal(t, 4, p.(QueueLength).CustomerCount)
}

func TestWaitTime_Boundary(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	ctx := stationCtx()
	ctx.Queue = correlator.QueueStats{Samples: 1, MaxDwellSeconds: 299.9}
	assert.Nil(t, find(e.Evaluate(ctx), EventWaitTime))

	ctx.Queue.MaxDwellSeconds = 300
	p := find(e.Evaluate(ctx), EventWaitTime)
	require.NotNil(t, p)
	assert.InDelta(t, 300, p.(WaitTime).DwellSeconds, 1e-9)
}

func TestQueueRules_AbstainWithoutSamples(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	ctx := stationCtx()
	ctx.Queue = correlator.QueueStats{}
	payloads := e.Evaluate(ctx)
	assert.Nil(t, find(payloads, EventQueueLength))
	assert.Nil(t, find(payloads, EventWaitTime))
}

func TestInventoryDiscrepancy(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	ctx := globalCtx()
	ctx.Inventory = []correlator.InventoryCheck{
		// boundary value, small stock, and two qualifying variances
		{SKU: "PRD_A_01", Expected: 100, Actual: 90, VariancePct: 10.0},
		{SKU: "PRD_B_01", Expected: 100, Actual: 80, VariancePct: 20.0},
		{SKU: "PRD_C_01", Expected: 100, Actual: 70, VariancePct: 30.0},
		{SKU: "PRD_D_01", Expected: 5, Actual: 1, VariancePct: 80.0},
	}

	p := find(e.Evaluate(ctx), EventInventoryDiscrepancy)
	require.NotNil(t, p)
	id := p.(InventoryDiscrepancy)
	assert.Equal(t, "PRD_C_01", id.SKU, "the largest qualifying variance wins")
	assert.Equal(t, 100, id.Expected)
	assert.Equal(t, 70, id.Actual)
}

func TestInventoryDiscrepancy_BoundaryAbstains(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	ctx := globalCtx()
	ctx.Inventory = []correlator.InventoryCheck{
		{SKU: "PRD_A_01", Expected: 100, Actual: 90, VariancePct: 10.0},
	}
	assert.Nil(t, find(e.Evaluate(ctx), EventInventoryDiscrepancy), "variance of exactly 10% must not fire")
}

func TestStaffingNeed_Boundary(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	ctx := globalCtx()
	ctx.Occupancy = correlator.OccupancyStats{ActiveStations: 6, TotalStations: 10, ActiveRatio: 0.6}
	assert.Nil(t, find(e.Evaluate(ctx), EventStaffingNeed))

	ctx.Occupancy = correlator.OccupancyStats{ActiveStations: 7, TotalStations: 10, ActiveRatio: 0.7}
	p := find(e.Evaluate(ctx), EventStaffingNeed)
	require.NotNil(t, p, "ratio at the threshold fires")
	assert.InDelta(t, 0.7, p.(StaffingNeed).ActiveRatio, 1e-9)
}

func TestStaffingNeed_AbstainsWithoutStations(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	assert.Nil(t, find(e.Evaluate(globalCtx()), EventStaffingNeed))
}

func TestSuccessOperation(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	tx := record.Transaction{Timestamp: at(3), StationID: "SCC1", SKU: "PRD_F_01", CustomerID: "C001", ScannedPrice: 25}
	ctx := stationCtx()
	ctx.Matched = []correlator.TagMatch{{
		Read: record.TagRead{Timestamp: at(1), StationID: "SCC1", TagID: "TAG1", SKU: "PRD_F_01", Location: record.LocationInScanArea},
		Tx:   tx,
	}}
	ctx.PriceChecks = []correlator.PriceCheck{{Tx: tx, CatalogPrice: 25, Ratio: 1.0}}

	p := find(e.Evaluate(ctx), EventSuccessOperation)
	require.NotNil(t, p)
	so := p.(SuccessOperation)
	assert.Equal(t, "C001", so.Customer)
	assert.Equal(t, "PRD_F_01", so.SKU)
	assert.Equal(t, at(3), so.EventTime(), "success events carry the transaction timestamp")
}

func TestSuccessOperation_FailingCheckDisqualifies(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	tx := record.Transaction{Timestamp: at(3), StationID: "SCC1", SKU: "PRD_T_03", CustomerID: "C001", ScannedPrice: 2}
	ctx := stationCtx()
	ctx.Matched = []correlator.TagMatch{{
		Read: record.TagRead{Timestamp: at(1), StationID: "SCC1", TagID: "TAG1", SKU: "PRD_T_03", Location: record.LocationInScanArea},
		Tx:   tx,
	}}
	ctx.PriceChecks = []correlator.PriceCheck{{Tx: tx, CatalogPrice: 20, Ratio: 0.1}}

	payloads := e.Evaluate(ctx)
	assert.Nil(t, find(payloads, EventSuccessOperation))
	assert.NotNil(t, find(payloads, EventBarcodeSwitching))
}

func TestStationRulesAbstainOnGlobalSlice(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	ctx := globalCtx()
	ctx.Unscanned = []correlator.UnscannedRead{{
		Read: record.TagRead{Timestamp: at(1), TagID: "TAG1", SKU: "PRD_T_03", Location: record.LocationInScanArea},
	}}
	assert.Nil(t, find(e.Evaluate(ctx), EventScannerAvoidance))
}

func TestRulePanicIsolated(t *testing.T) {
	t.Parallel()
	e := newTestEngine()

	boom := rule{name: "boom", eval: func(*correlator.Context) Payload { panic("kaboom") }}
	p, err := e.run(boom, stationCtx())
	require.Error(t, err)
	assert.Nil(t, p)
	assert.Contains(t, err.Error(), "kaboom")
}
