package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warebot/warebot_backend/store"
	"github.com/warebot/warebot_backend/utils"
)

// Field keys of the stock-layer table. The remote store is schemaless from
// our side; these names are the logical schema the engine owns.
const (
	FieldProductId      = "product_id"
	FieldWarehouseName  = "warehouse"
	FieldUnitCost       = "unit_cost"
	FieldCumulativeIn   = "cumulative_inbound_qty"
	FieldCumulativeOut  = "cumulative_outbound_qty"
	FieldCurrentQty     = "current_qty"
	FieldTotalInValue   = "total_inbound_value"
	FieldTotalOutValue  = "total_outbound_value"
	FieldLastInboundAt  = "last_inbound_at"
	FieldLastOutboundAt = "last_outbound_at"
	FieldLastUpdatedAt  = "last_updated_at"
)

// StockLayer is one cost tranche of a product in a warehouse. The natural
// key is (ProductId, WarehouseName, UnitCost); RecordId is the opaque store
// identity assigned on first save. Layers are never deleted, a tranche at
// zero quantity stays around so future inbound at the same cost merges in.
type StockLayer struct {
	RecordId              string          `json:"record_id"`
	ProductId             string          `json:"product_id"`
	WarehouseName         string          `json:"warehouse_name"`
	UnitCost              decimal.Decimal `json:"unit_cost"`
	CumulativeInboundQty  decimal.Decimal `json:"cumulative_inbound_qty"`
	CumulativeOutboundQty decimal.Decimal `json:"cumulative_outbound_qty"`
	CurrentQty            decimal.Decimal `json:"current_qty"`
	TotalInboundValue     decimal.Decimal `json:"total_inbound_value"`
	TotalOutboundValue    decimal.Decimal `json:"total_outbound_value"`
	LastInboundAt         *time.Time      `json:"last_inbound_at,omitempty"`
	LastOutboundAt        *time.Time      `json:"last_outbound_at,omitempty"`
	LastUpdatedAt         *time.Time      `json:"last_updated_at,omitempty"`
}

// ConservationHolds reports the core ledger invariant:
// current_qty == cumulative_inbound_qty - cumulative_outbound_qty.
func (l *StockLayer) ConservationHolds() bool {
	return l.CurrentQty.Equal(l.CumulativeInboundQty.Sub(l.CumulativeOutboundQty))
}

// Fields flattens the layer for the record store. Decimals travel as
// strings to survive the JSON round trip without float drift.
func (l *StockLayer) Fields() map[string]any {
	fields := map[string]any{
		FieldProductId:     l.ProductId,
		FieldWarehouseName: l.WarehouseName,
		FieldUnitCost:      l.UnitCost.String(),
		FieldCumulativeIn:  l.CumulativeInboundQty.String(),
		FieldCumulativeOut: l.CumulativeOutboundQty.String(),
		FieldCurrentQty:    l.CurrentQty.String(),
		FieldTotalInValue:  l.TotalInboundValue.String(),
		FieldTotalOutValue: l.TotalOutboundValue.String(),
	}
	putTime(fields, FieldLastInboundAt, l.LastInboundAt)
	putTime(fields, FieldLastOutboundAt, l.LastOutboundAt)
	putTime(fields, FieldLastUpdatedAt, l.LastUpdatedAt)
	return fields
}

// StockLayerFromRecord rebuilds a layer from a raw store record. Numeric
// fields tolerate both string and number wire forms; the hosted table
// rewrites cell types depending on column configuration.
func StockLayerFromRecord(rec store.Record) (*StockLayer, error) {
	layer := &StockLayer{
		RecordId:      rec.Id,
		ProductId:     stringField(rec.Fields, FieldProductId),
		WarehouseName: stringField(rec.Fields, FieldWarehouseName),
	}
	var err error
	if layer.UnitCost, err = decimalField(rec.Fields, FieldUnitCost); err != nil {
		return nil, err
	}
	if layer.CumulativeInboundQty, err = decimalField(rec.Fields, FieldCumulativeIn); err != nil {
		return nil, err
	}
	if layer.CumulativeOutboundQty, err = decimalField(rec.Fields, FieldCumulativeOut); err != nil {
		return nil, err
	}
	if layer.CurrentQty, err = decimalField(rec.Fields, FieldCurrentQty); err != nil {
		return nil, err
	}
	if layer.TotalInboundValue, err = decimalField(rec.Fields, FieldTotalInValue); err != nil {
		return nil, err
	}
	if layer.TotalOutboundValue, err = decimalField(rec.Fields, FieldTotalOutValue); err != nil {
		return nil, err
	}
	layer.LastInboundAt = timeField(rec.Fields, FieldLastInboundAt)
	layer.LastOutboundAt = timeField(rec.Fields, FieldLastOutboundAt)
	layer.LastUpdatedAt = timeField(rec.Fields, FieldLastUpdatedAt)
	return layer, nil
}

func stringField(fields map[string]any, key string) string {
	v, _ := fields[key].(string)
	return v
}

func decimalField(fields map[string]any, key string) (decimal.Decimal, error) {
	switch v := fields[key].(type) {
	case nil:
		return decimal.Zero, nil
	case string:
		if v == "" {
			return decimal.Zero, nil
		}
		return utils.ParseDecimal(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Zero, nil
	}
}

// putTime always writes the key: updates are patches, so an absent key
// would leave a stale value behind when a rollback restores a nil
// timestamp.
func putTime(fields map[string]any, key string, t *time.Time) {
	if t == nil {
		fields[key] = ""
		return
	}
	fields[key] = t.UTC().Format(time.RFC3339)
}

func timeField(fields map[string]any, key string) *time.Time {
	s, _ := fields[key].(string)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
