package models

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/warebot/warebot_backend/store"
)

// CostEpsilon absorbs float drift from the store's serialization round
// trip: unit costs within this tolerance address the same layer.
var CostEpsilon = decimal.RequireFromString("0.01")

// StockLayerRepository loads and persists stock layers through the record
// store. It owns the natural-key matching rules; everything above it works
// with typed layers only.
type StockLayerRepository struct {
	store store.RecordStore
	table string
}

func NewStockLayerRepository(s store.RecordStore, table string) *StockLayerRepository {
	return &StockLayerRepository{store: s, table: table}
}

// Find returns the layer matching the (product, warehouse, unit cost)
// triple, or nil when no layer matches. Cost comparison uses CostEpsilon.
func (r *StockLayerRepository) Find(ctx context.Context, productId, warehouseName string, unitCost decimal.Decimal) (*StockLayer, error) {
	layers, err := r.FindAll(ctx, productId, warehouseName)
	if err != nil {
		return nil, err
	}
	for _, layer := range layers {
		if layer.UnitCost.Sub(unitCost).Abs().LessThanOrEqual(CostEpsilon) {
			return layer, nil
		}
	}
	return nil, nil
}

// FindAll scans the layer table filtered by product and/or warehouse.
// Empty filters match everything. Order follows the store's record order,
// which for append-only tables is creation order; the allocator's stable
// sort relies on that for deterministic tie-breaks.
func (r *StockLayerRepository) FindAll(ctx context.Context, productId, warehouseName string) ([]*StockLayer, error) {
	records, err := r.store.List(ctx, r.table)
	if err != nil {
		return nil, err
	}
	layers := make([]*StockLayer, 0, len(records))
	for _, rec := range records {
		layer, err := StockLayerFromRecord(rec)
		if err != nil {
			return nil, err
		}
		if productId != "" && layer.ProductId != productId {
			continue
		}
		if warehouseName != "" && layer.WarehouseName != warehouseName {
			continue
		}
		layers = append(layers, layer)
	}
	return layers, nil
}

// Save creates the remote record when the layer has no store identity yet,
// otherwise updates in place. On create the assigned record id is written
// back onto the layer.
func (r *StockLayerRepository) Save(ctx context.Context, layer *StockLayer) error {
	if layer.RecordId == "" {
		created, err := r.store.Create(ctx, r.table, []map[string]any{layer.Fields()})
		if err != nil {
			return err
		}
		if len(created) != 1 {
			return errors.New("store returned unexpected record count on layer create")
		}
		layer.RecordId = created[0].Id
		return nil
	}
	return r.store.Update(ctx, r.table, layer.RecordId, layer.Fields())
}
