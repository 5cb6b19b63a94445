package correlator

import (
	"math"
	"sort"
	"time"

	"github.com/projectsentinel/sentinel-go/internal/catalog"
	"github.com/projectsentinel/sentinel-go/internal/record"
)

// TagMatch pairs a tag read with the transaction that accounts for it.
type TagMatch struct {
	Read record.TagRead
	Tx   record.Transaction
}

// UnscannedRead is an in-scan-area tag read no transaction accounted for.
type UnscannedRead struct {
	Read  record.TagRead
	Dwell time.Duration // time the tag spent in the scan area this window
}

// PriceCheck compares a transaction's scanned price to the catalog price.
type PriceCheck struct {
	Tx           record.Transaction
	CatalogPrice float64
	Ratio        float64 // scanned / catalog
	Deviation    float64 // catalog - scanned
}

// WeightCheck compares a transaction's reported weight to the catalog
// expectation. Only transactions that reported a weight produce one.
type WeightCheck struct {
	Tx             record.Transaction
	ExpectedGrams  float64
	DeviationGrams float64 // absolute deviation
}

// QueueStats aggregates the queue samples of one window.
type QueueStats struct {
	Samples         int
	MaxCustomers    int
	MaxDwellSeconds float64
}

// InventoryCheck compares the latest counted stock of one SKU against
// the catalog expectation.
type InventoryCheck struct {
	SKU         string
	Expected    int
	Actual      int
	VariancePct float64
}

// OccupancyStats summarizes how many stations were serving customers.
type OccupancyStats struct {
	ActiveStations int     `json:"active_stations"`
	TotalStations  int     `json:"total_stations"`
	ActiveRatio    float64 `json:"active_ratio"`
}

// Context is the joined, derived view of one closed window that the
// detection rules evaluate. Rules read it and never mutate it. A context
// with an empty StationID describes the store-wide slice and carries the
// inventory and occupancy sections instead of the per-station ones.
type Context struct {
	StationID   string
	WindowStart time.Time
	WindowEnd   time.Time
	Partial     bool

	StationStatus string
	CustomerID    string // resolved customer, empty when ambiguous

	Matched      []TagMatch
	Unscanned    []UnscannedRead
	PriceChecks  []PriceCheck
	WeightChecks []WeightCheck
	Queue        QueueStats
	Recognitions []record.RecognitionResult

	Inventory []InventoryCheck
	Occupancy OccupancyStats
}

// MatchedTagIDs returns the set of tag ids accounted for by a transaction.
func (c *Context) MatchedTagIDs() map[string]bool {
	out := make(map[string]bool, len(c.Matched))
	for _, m := range c.Matched {
		out[m.Read.TagID] = true
	}
	return out
}

// Builder turns closed windows into rule contexts by joining them
// against the product catalog and the station registry.
type Builder struct {
	catalog  *catalog.Catalog
	registry *Registry
}

func NewBuilder(cat *catalog.Catalog, registry *Registry) *Builder {
	return &Builder{catalog: cat, registry: registry}
}

// Build derives the rule context for one closed window. The same window
// contents always produce the same context.
func (b *Builder) Build(w *Window) *Context {
	ctx := &Context{
		StationID:   w.StationID,
		WindowStart: w.Start,
		WindowEnd:   w.End,
		Partial:     w.Partial,
	}

	if w.StationID == "" {
		b.buildGlobal(ctx, w)
		return ctx
	}

	ctx.StationStatus = latestStatus(w)
	ctx.CustomerID = resolveCustomer(w.Transactions)
	b.matchReads(ctx, w)
	b.checkPrices(ctx, w)
	b.checkWeights(ctx, w)
	ctx.Queue = aggregateQueue(w.QueueSamples)
	ctx.Recognitions = append(ctx.Recognitions, w.Recognitions...)

	return ctx
}

// matchReads pairs every in-scan-area tag read with at most one
// transaction of the same SKU, preferring the transaction nearest in
// time. Reads left unpaired become unscanned reads with their dwell.
func (b *Builder) matchReads(ctx *Context, w *Window) {
	reads := make([]record.TagRead, 0, len(w.TagReads))
	for _, r := range w.TagReads {
		if r.InScanArea() {
			reads = append(reads, r)
		}
	}
	sort.SliceStable(reads, func(i, j int) bool {
		if !reads[i].Timestamp.Equal(reads[j].Timestamp) {
			return reads[i].Timestamp.Before(reads[j].Timestamp)
		}
		return reads[i].TagID < reads[j].TagID
	})

	txs := make([]record.Transaction, len(w.Transactions))
	copy(txs, w.Transactions)
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp.Before(txs[j].Timestamp)
	})
	consumed := make([]bool, len(txs))

	// first/last observation per tag, for dwell
	firstSeen := make(map[string]time.Time)
	lastSeen := make(map[string]time.Time)
	for _, r := range reads {
		if f, ok := firstSeen[r.TagID]; !ok || r.Timestamp.Before(f) {
			firstSeen[r.TagID] = r.Timestamp
		}
		if l, ok := lastSeen[r.TagID]; !ok || r.Timestamp.After(l) {
			lastSeen[r.TagID] = r.Timestamp
		}
	}

	for _, r := range reads {
		best := -1
		var bestDelta time.Duration
		for i, tx := range txs {
			if consumed[i] || tx.SKU != r.SKU {
				continue
			}
			delta := tx.Timestamp.Sub(r.Timestamp)
			if delta < 0 {
				delta = -delta
			}
			if best == -1 || delta < bestDelta {
				best = i
				bestDelta = delta
			}
		}
		if best >= 0 {
			consumed[best] = true
			ctx.Matched = append(ctx.Matched, TagMatch{Read: r, Tx: txs[best]})
			continue
		}
		ctx.Unscanned = append(ctx.Unscanned, UnscannedRead{
			Read:  r,
			Dwell: lastSeen[r.TagID].Sub(firstSeen[r.TagID]),
		})
	}
}

func (b *Builder) checkPrices(ctx *Context, w *Window) {
	for _, tx := range w.Transactions {
		price, ok := b.catalog.ExpectedPrice(tx.SKU)
		if !ok || price <= 0 {
			continue
		}
		ctx.PriceChecks = append(ctx.PriceChecks, PriceCheck{
			Tx:           tx,
			CatalogPrice: price,
			Ratio:        tx.ScannedPrice / price,
			Deviation:    price - tx.ScannedPrice,
		})
	}
}

func (b *Builder) checkWeights(ctx *Context, w *Window) {
	for _, tx := range w.Transactions {
		if !tx.HasWeight {
			continue
		}
		expected, ok := b.catalog.ExpectedWeight(tx.SKU)
		if !ok || expected <= 0 {
			continue
		}
		ctx.WeightChecks = append(ctx.WeightChecks, WeightCheck{
			Tx:             tx,
			ExpectedGrams:  expected,
			DeviationGrams: math.Abs(tx.WeightGrams - expected),
		})
	}
}

// buildGlobal fills the store-wide sections: inventory variance from the
// latest snapshot in the window and occupancy from the registry.
func (b *Builder) buildGlobal(ctx *Context, w *Window) {
	if len(w.Snapshots) > 0 {
		latest := w.Snapshots[0]
		for _, s := range w.Snapshots[1:] {
			if s.Timestamp.After(latest.Timestamp) {
				latest = s
			}
		}

		skus := make([]string, 0, len(latest.Counts))
		for sku := range latest.Counts {
			skus = append(skus, sku)
		}
		sort.Strings(skus)

		for _, sku := range skus {
			p, ok := b.catalog.Product(sku)
			if !ok || p.ExpectedQuantity <= 0 {
				continue
			}
			actual := latest.Counts[sku]
			variance := math.Abs(float64(actual-p.ExpectedQuantity)) / float64(p.ExpectedQuantity) * 100
			ctx.Inventory = append(ctx.Inventory, InventoryCheck{
				SKU:         sku,
				Expected:    p.ExpectedQuantity,
				Actual:      actual,
				VariancePct: variance,
			})
		}
	}

	if b.registry != nil {
		ctx.Occupancy = b.registry.Occupancy()
	}
}

// latestStatus returns the most recent non-empty status reported by any
// record in the window.
func latestStatus(w *Window) string {
	var status string
	var at time.Time

	note := func(ts time.Time, s string) {
		if s == "" {
			return
		}
		if status == "" || ts.After(at) {
			status, at = s, ts
		}
	}

	for _, r := range w.TagReads {
		note(r.Timestamp, r.Status)
	}
	for _, r := range w.Transactions {
		note(r.Timestamp, r.Status)
	}
	for _, r := range w.QueueSamples {
		note(r.Timestamp, r.Status)
	}
	for _, r := range w.Recognitions {
		note(r.Timestamp, r.Status)
	}
	return status
}

// resolveCustomer returns the window's customer id when every
// transaction agrees on exactly one, otherwise empty.
func resolveCustomer(txs []record.Transaction) string {
	var id string
	for _, tx := range txs {
		if tx.CustomerID == "" {
			continue
		}
		if id == "" {
			id = tx.CustomerID
			continue
		}
		if tx.CustomerID != id {
			return ""
		}
	}
	return id
}

func aggregateQueue(samples []record.QueueSample) QueueStats {
	stats := QueueStats{Samples: len(samples)}
	for _, s := range samples {
		if s.CustomerCount > stats.MaxCustomers {
			stats.MaxCustomers = s.CustomerCount
		}
		if s.AvgDwellSeconds > stats.MaxDwellSeconds {
			stats.MaxDwellSeconds = s.AvgDwellSeconds
		}
	}
	return stats
}
