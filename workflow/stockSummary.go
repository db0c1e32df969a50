package workflow

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warebot/warebot_backend/config"
	"github.com/warebot/warebot_backend/models"
)

// GetStockSummary is a read-through of the layer table, optionally filtered
// by product and/or warehouse. No aggregation happens here; callers sum
// CurrentQty across the returned layers when they need a total.
func (l *Ledger) GetStockSummary(ctx context.Context, productId, warehouseName string) ([]*models.StockLayer, error) {
	layers, err := l.layers.FindAll(ctx, productId, warehouseName)
	if err != nil {
		config.LogError(l.logger, "stockSummary.go", "GetStockSummary", "FindAllLayers", map[string]string{
			"productId": productId, "warehouseName": warehouseName,
		}, err)
		return nil, err
	}
	return layers, nil
}

// AvailableQty sums current quantity across the layers of one
// (product, warehouse) key.
func (l *Ledger) AvailableQty(ctx context.Context, productId, warehouseName string) (decimal.Decimal, error) {
	layers, err := l.GetStockSummary(ctx, productId, warehouseName)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, layer := range layers {
		total = total.Add(layer.CurrentQty)
	}
	return total, nil
}
