package detector

import (
	"fmt"
	"log/slog"

	"github.com/projectsentinel/sentinel-go/internal/conf"
	"github.com/projectsentinel/sentinel-go/internal/correlator"
	"github.com/projectsentinel/sentinel-go/internal/logging"
	"github.com/projectsentinel/sentinel-go/internal/record"
	"github.com/projectsentinel/sentinel-go/internal/telemetry"
)

// UnknownCustomer is reported when a window's customer cannot be resolved.
const UnknownCustomer = "Unknown"

// rule is one named detection check. A rule returns nil to abstain.
type rule struct {
	name string
	eval func(*correlator.Context) Payload
}

// Engine runs the detection rules against window contexts. Rules are
// evaluated in a fixed order and isolated from each other: a panicking
// rule is reported and skipped, the remaining rules still run.
type Engine struct {
	settings conf.DetectorSettings
	rules    []rule
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

func NewEngine(settings conf.DetectorSettings, metrics *telemetry.Metrics) *Engine {
	e := &Engine{
		settings: settings,
		metrics:  metrics,
		logger:   logging.ForService("detector"),
	}
	e.rules = []rule{
		{EventScannerAvoidance, e.scannerAvoidance},
		{EventBarcodeSwitching, e.barcodeSwitching},
		{EventWeightDiscrepancy, e.weightDiscrepancy},
		{EventSystemCrash, e.systemCrash},
		{EventQueueLength, e.queueLength},
		{EventWaitTime, e.waitTime},
		{EventInventoryDiscrepancy, e.inventoryDiscrepancy},
		{EventStaffingNeed, e.staffingNeed},
	}
	return e
}

// Evaluate runs every rule against ctx and returns the payloads in rule
// order, followed by any success operations.
func (e *Engine) Evaluate(ctx *correlator.Context) []Payload {
	var out []Payload
	for _, r := range e.rules {
		p, err := e.run(r, ctx)
		if err != nil {
			e.metrics.RuleFailure(r.name)
			e.logger.Error("rule evaluation failed",
				"rule", r.name,
				"station", ctx.StationID,
				"window_start", ctx.WindowStart,
				"error", err)
			continue
		}
		if p != nil {
			out = append(out, p)
		}
	}
	out = append(out, e.successOperations(ctx)...)
	return out
}

// run evaluates one rule, converting a panic into an error so one faulty
// rule cannot take down the evaluation of a window.
func (e *Engine) run(r rule, ctx *correlator.Context) (p Payload, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p = nil
			err = fmt.Errorf("rule %s panicked: %v", r.name, rec)
		}
	}()
	return r.eval(ctx), nil
}

// scannerAvoidance fires on the first in-scan-area read whose tag was
// never accounted for by a transaction and dwelled at least the minimum.
func (e *Engine) scannerAvoidance(ctx *correlator.Context) Payload {
	if ctx.StationID == "" {
		return nil
	}
	matched := ctx.MatchedTagIDs()
	for _, u := range ctx.Unscanned {
		if matched[u.Read.TagID] {
			continue
		}
		if u.Dwell < e.settings.MinDwell {
			continue
		}
		customer := ctx.CustomerID
		if customer == "" {
			customer = UnknownCustomer
		}
		return ScannerAvoidance{
			Station:  ctx.StationID,
			SKU:      u.Read.SKU,
			Customer: customer,
		}
	}
	return nil
}

// barcodeSwitching fires when a scanned price is at or below the catalog
// price scaled by the fraud ratio.
func (e *Engine) barcodeSwitching(ctx *correlator.Context) Payload {
	for _, pc := range ctx.PriceChecks {
		if pc.Tx.ScannedPrice > pc.CatalogPrice*e.settings.PriceRatio {
			continue
		}
		return BarcodeSwitching{
			Station:      ctx.StationID,
			SKU:          pc.Tx.SKU,
			ScannedPrice: pc.Tx.ScannedPrice,
			CatalogPrice: pc.CatalogPrice,
		}
	}
	return nil
}

// weightDiscrepancy fires when the absolute deviation strictly exceeds
// the tolerance. A deviation exactly at the tolerance does not fire.
func (e *Engine) weightDiscrepancy(ctx *correlator.Context) Payload {
	for _, wc := range ctx.WeightChecks {
		if wc.DeviationGrams <= e.settings.WeightToleranceGrams {
			continue
		}
		return WeightDiscrepancy{
			Station:        ctx.StationID,
			SKU:            wc.Tx.SKU,
			ActualWeight:   wc.Tx.WeightGrams,
			ExpectedWeight: wc.ExpectedGrams,
		}
	}
	return nil
}

func (e *Engine) systemCrash(ctx *correlator.Context) Payload {
	switch ctx.StationStatus {
	case record.StatusSystemCrash, record.StatusReadError:
		return SystemCrash{Station: ctx.StationID, Status: ctx.StationStatus}
	}
	return nil
}

func (e *Engine) queueLength(ctx *correlator.Context) Payload {
	if ctx.Queue.Samples == 0 || ctx.Queue.MaxCustomers < e.settings.QueueThreshold {
		return nil
	}
	return QueueLength{
		Station:       ctx.StationID,
		CustomerCount: ctx.Queue.MaxCustomers,
	}
}

func (e *Engine) waitTime(ctx *correlator.Context) Payload {
	if ctx.Queue.Samples == 0 || ctx.Queue.MaxDwellSeconds < e.settings.DwellThresholdSeconds {
		return nil
	}
	return WaitTime{
		Station:      ctx.StationID,
		DwellSeconds: ctx.Queue.MaxDwellSeconds,
	}
}

// inventoryDiscrepancy fires on the SKU with the largest variance
// strictly over the threshold. SKUs with expected stock under the
// configured minimum are skipped as too small for a percentage to mean
// anything.
func (e *Engine) inventoryDiscrepancy(ctx *correlator.Context) Payload {
	best := -1
	for i, ic := range ctx.Inventory {
		if ic.Expected < e.settings.MinInventoryForVariance {
			continue
		}
		if ic.VariancePct <= e.settings.InventoryVariancePct {
			continue
		}
		if best == -1 || ic.VariancePct > ctx.Inventory[best].VariancePct {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	ic := ctx.Inventory[best]
	return InventoryDiscrepancy{
		SKU:         ic.SKU,
		Expected:    ic.Expected,
		Actual:      ic.Actual,
		VariancePct: ic.VariancePct,
	}
}

func (e *Engine) staffingNeed(ctx *correlator.Context) Payload {
	occ := ctx.Occupancy
	if occ.TotalStations == 0 || occ.ActiveRatio < e.settings.StaffingRatio {
		return nil
	}
	return StaffingNeed{
		ActiveRatio:       occ.ActiveRatio,
		RecommendedAction: "Open additional stations",
	}
}

// successOperations reports the first transaction in the window that was
// accounted for by a tag read and passed the price and weight checks.
func (e *Engine) successOperations(ctx *correlator.Context) []Payload {
	if ctx.StationID == "" || len(ctx.Matched) == 0 {
		return nil
	}

	failing := make(map[string]bool)
	for _, pc := range ctx.PriceChecks {
		if pc.Tx.ScannedPrice <= pc.CatalogPrice*e.settings.PriceRatio {
			failing[txKey(pc.Tx)] = true
		}
	}
	for _, wc := range ctx.WeightChecks {
		if wc.DeviationGrams > e.settings.WeightToleranceGrams {
			failing[txKey(wc.Tx)] = true
		}
	}

	for _, m := range ctx.Matched {
		if failing[txKey(m.Tx)] {
			continue
		}
		customer := m.Tx.CustomerID
		if customer == "" {
			customer = UnknownCustomer
		}
		return []Payload{SuccessOperation{
			Station:  ctx.StationID,
			Customer: customer,
			SKU:      m.Tx.SKU,
			At:       m.Tx.Timestamp,
		}}
	}
	return nil
}

func txKey(tx record.Transaction) string {
	return tx.Timestamp.Format("2006-01-02T15:04:05.999999999") + "|" + tx.StationID + "|" + tx.SKU + "|" + tx.CustomerID
}
