package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Allocation is one (layer, quantity) pair chosen to satisfy part of an
// outbound request.
type Allocation struct {
	Layer *StockLayer
	Qty   decimal.Decimal
}

// AllocateAcrossLayers selects which layers cover requestedQty, consuming
// the most expensive stock first (cost-descending, NOT FIFO by time; the
// conservative choice for margin reporting). Ties keep the input order so
// allocation stays deterministic. All-or-nothing: when the layers cannot
// cover the request, no allocation is returned.
//
// The second return value is the total quantity available across layers;
// callers use it to report required-vs-available on shortage.
// requestedQty must already be validated as > 0.
func AllocateAcrossLayers(layers []*StockLayer, requestedQty decimal.Decimal) ([]Allocation, decimal.Decimal, bool) {
	candidates := make([]*StockLayer, 0, len(layers))
	available := decimal.Zero
	for _, layer := range layers {
		if layer.CurrentQty.GreaterThan(decimal.Zero) {
			candidates = append(candidates, layer)
			available = available.Add(layer.CurrentQty)
		}
	}
	if available.LessThan(requestedQty) {
		return nil, available, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].UnitCost.GreaterThan(candidates[j].UnitCost)
	})

	allocations := make([]Allocation, 0, len(candidates))
	remaining := requestedQty
	for _, layer := range candidates {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		take := decimal.Min(remaining, layer.CurrentQty)
		allocations = append(allocations, Allocation{Layer: layer, Qty: take})
		remaining = remaining.Sub(take)
	}
	return allocations, available, true
}
